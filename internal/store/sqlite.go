package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqldb}, nil
}

// DB returns the underlying handle for subsystems that need direct access
// (the SQLite geocode cache shares the same file).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL DEFAULT '',
	zip_code    TEXT NOT NULL DEFAULT '',
	county      TEXT NOT NULL DEFAULT '',
	region_code TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'prospect',
	latitude    REAL,
	longitude   REAL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS people (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meetings (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	subject         TEXT NOT NULL,
	notes           TEXT NOT NULL DEFAULT '',
	occurred_at     TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS regions (
	code      TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	latitude  REAL NOT NULL,
	longitude REAL NOT NULL,
	min_lat   REAL NOT NULL,
	min_lon   REAL NOT NULL,
	max_lat   REAL NOT NULL,
	max_lon   REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_organizations_region ON organizations(region_code);
CREATE INDEX IF NOT EXISTS idx_organizations_state ON organizations(state);
CREATE INDEX IF NOT EXISTS idx_organizations_status ON organizations(status);
CREATE INDEX IF NOT EXISTS idx_people_org ON people(organization_id);
CREATE INDEX IF NOT EXISTS idx_meetings_org ON meetings(organization_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertOrganization(ctx context.Context, org *model.Organization) error {
	now := time.Now().UTC()
	if org.ID == "" {
		org.ID = uuid.New().String()
		org.CreatedAt = now
	}
	if org.Status == "" {
		org.Status = model.OrgStatusProspect
	}
	org.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations
		 (id, name, address, city, state, zip_code, county, region_code, status, latitude, longitude, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, address = excluded.address, city = excluded.city,
		   state = excluded.state, zip_code = excluded.zip_code, county = excluded.county,
		   region_code = excluded.region_code, status = excluded.status,
		   latitude = excluded.latitude, longitude = excluded.longitude,
		   updated_at = excluded.updated_at`,
		org.ID, org.Name, org.Address, org.City, org.State, org.ZipCode,
		org.County, org.RegionCode, string(org.Status), org.Latitude,
		org.Longitude, sqliteTime(org.CreatedAt), sqliteTime(org.UpdatedAt),
	)
	return eris.Wrapf(err, "sqlite: upsert organization %s", org.ID)
}

func (s *SQLiteStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, address, city, state, zip_code, county, region_code, status, latitude, longitude, created_at, updated_at
		 FROM organizations WHERE id = ?`,
		id,
	)
	o, err := scanSQLiteOrganization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get organization %s", id)
	}
	return o, nil
}

func (s *SQLiteStore) ListOrganizations(ctx context.Context, filter OrgFilter) ([]model.Organization, error) {
	query := `SELECT id, name, address, city, state, zip_code, county, region_code, status, latitude, longitude, created_at, updated_at
	          FROM organizations WHERE 1=1`
	var args []any

	if filter.RegionCode != "" {
		query += ` AND region_code = ?`
		args = append(args, filter.RegionCode)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY name`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list organizations")
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		o, err := scanSQLiteOrganization(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan organization")
		}
		orgs = append(orgs, *o)
	}
	return orgs, eris.Wrap(rows.Err(), "sqlite: list organizations iterate")
}

func (s *SQLiteStore) ListUngeocodedOrganizations(ctx context.Context, limit int) ([]model.Organization, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, address, city, state, zip_code, county, region_code, status, latitude, longitude, created_at, updated_at
		 FROM organizations
		 WHERE latitude IS NULL AND city <> '' AND state <> ''
		 ORDER BY name LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ungeocoded organizations")
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		o, err := scanSQLiteOrganization(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan organization")
		}
		orgs = append(orgs, *o)
	}
	return orgs, eris.Wrap(rows.Err(), "sqlite: list ungeocoded iterate")
}

func (s *SQLiteStore) UpdateOrganizationCoordinates(ctx context.Context, id string, lat, lon float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET latitude = ?, longitude = ?, updated_at = ? WHERE id = ?`,
		lat, lon, sqliteTime(time.Now().UTC()), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update organization coordinates %s", id)
	}
	return checkRowsAffected(res, "organization", id)
}

func (s *SQLiteStore) UpsertPerson(ctx context.Context, p *model.Person) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.New().String()
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO people
		 (id, organization_id, first_name, last_name, title, email, phone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   organization_id = excluded.organization_id, first_name = excluded.first_name,
		   last_name = excluded.last_name, title = excluded.title,
		   email = excluded.email, phone = excluded.phone, updated_at = excluded.updated_at`,
		p.ID, p.OrganizationID, p.FirstName, p.LastName, p.Title,
		p.Email, p.Phone, sqliteTime(p.CreatedAt), sqliteTime(p.UpdatedAt),
	)
	return eris.Wrapf(err, "sqlite: upsert person %s", p.ID)
}

func (s *SQLiteStore) ListPeople(ctx context.Context, orgID string) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, first_name, last_name, title, email, phone, created_at, updated_at
		 FROM people WHERE organization_id = ? ORDER BY last_name, first_name`,
		orgID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list people for %s", orgID)
	}
	defer rows.Close()

	var people []model.Person
	for rows.Next() {
		var p model.Person
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.FirstName, &p.LastName,
			&p.Title, &p.Email, &p.Phone, &createdAt, &updatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan person")
		}
		if p.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
			return nil, err
		}
		if p.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	return people, eris.Wrap(rows.Err(), "sqlite: list people iterate")
}

func (s *SQLiteStore) CreateMeeting(ctx context.Context, m *model.Meeting) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings (id, organization_id, subject, notes, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.OrganizationID, m.Subject, m.Notes,
		sqliteTime(m.OccurredAt), sqliteTime(m.CreatedAt),
	)
	return eris.Wrapf(err, "sqlite: insert meeting for %s", m.OrganizationID)
}

func (s *SQLiteStore) ListMeetings(ctx context.Context, orgID string) ([]model.Meeting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, subject, notes, occurred_at, created_at
		 FROM meetings WHERE organization_id = ? ORDER BY occurred_at DESC`,
		orgID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list meetings for %s", orgID)
	}
	defer rows.Close()

	var meetings []model.Meeting
	for rows.Next() {
		var m model.Meeting
		var occurredAt, createdAt string
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.Subject, &m.Notes,
			&occurredAt, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan meeting")
		}
		if m.OccurredAt, err = parseSQLiteTime(occurredAt); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, eris.Wrap(rows.Err(), "sqlite: list meetings iterate")
}

func (s *SQLiteStore) UpsertRegion(ctx context.Context, r model.Region) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO regions (code, name, latitude, longitude, min_lat, min_lon, max_lat, max_lon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (code) DO UPDATE SET
		   name = excluded.name, latitude = excluded.latitude, longitude = excluded.longitude,
		   min_lat = excluded.min_lat, min_lon = excluded.min_lon,
		   max_lat = excluded.max_lat, max_lon = excluded.max_lon`,
		r.Code, r.Name, r.Latitude, r.Longitude,
		r.MinLat, r.MinLon, r.MaxLat, r.MaxLon,
	)
	return eris.Wrapf(err, "sqlite: upsert region %s", r.Code)
}

func (s *SQLiteStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, latitude, longitude, min_lat, min_lon, max_lat, max_lon
		 FROM regions ORDER BY code`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list regions")
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.Code, &r.Name, &r.Latitude, &r.Longitude,
			&r.MinLat, &r.MinLon, &r.MaxLat, &r.MaxLon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region")
		}
		regions = append(regions, r)
	}
	return regions, eris.Wrap(rows.Err(), "sqlite: list regions iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

// sqliteTime stores timestamps as RFC3339Nano UTC strings so lexical
// comparison matches chronological order.
func sqliteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, eris.Wrapf(err, "sqlite: parse time %q", s)
}

func scanSQLiteOrganization(row scannable) (*model.Organization, error) {
	var o model.Organization
	var createdAt, updatedAt string

	err := row.Scan(&o.ID, &o.Name, &o.Address, &o.City, &o.State, &o.ZipCode,
		&o.County, &o.RegionCode, &o.Status, &o.Latitude, &o.Longitude,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if o.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}
