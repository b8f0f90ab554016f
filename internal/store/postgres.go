package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/db"
	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_organization":    `SELECT id, name, address, city, state, zip_code, county, region_code, status, latitude, longitude, created_at, updated_at FROM organizations WHERE id = $1`,
	"update_org_coords":   `UPDATE organizations SET latitude = $1, longitude = $2, updated_at = $3 WHERE id = $4`,
	"list_people_for_org": `SELECT id, organization_id, first_name, last_name, title, email, phone, created_at, updated_at FROM people WHERE organization_id = $1 ORDER BY last_name, first_name`,
	"insert_meeting":      `INSERT INTO meetings (id, organization_id, subject, notes, occurred_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests and by callers
// that manage the pool lifecycle themselves.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (the geocode cache, the region boundary loader).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL DEFAULT '',
	zip_code    TEXT NOT NULL DEFAULT '',
	county      TEXT NOT NULL DEFAULT '',
	region_code TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'prospect',
	latitude    DOUBLE PRECISION,
	longitude   DOUBLE PRECISION,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS people (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS meetings (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	subject         TEXT NOT NULL,
	notes           TEXT NOT NULL DEFAULT '',
	occurred_at     TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS regions (
	code      TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	latitude  DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	min_lat   DOUBLE PRECISION NOT NULL,
	min_lon   DOUBLE PRECISION NOT NULL,
	max_lat   DOUBLE PRECISION NOT NULL,
	max_lon   DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_organizations_region ON organizations(region_code);
CREATE INDEX IF NOT EXISTS idx_organizations_state ON organizations(state);
CREATE INDEX IF NOT EXISTS idx_organizations_status ON organizations(status);
CREATE INDEX IF NOT EXISTS idx_people_org ON people(organization_id);
CREATE INDEX IF NOT EXISTS idx_meetings_org ON meetings(organization_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertOrganization(ctx context.Context, org *model.Organization) error {
	now := time.Now().UTC()
	if org.ID == "" {
		org.ID = uuid.New().String()
		org.CreatedAt = now
	}
	if org.Status == "" {
		org.Status = model.OrgStatusProspect
	}
	org.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO organizations
		 (id, name, address, city, state, zip_code, county, region_code, status, latitude, longitude, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
		   name = $2, address = $3, city = $4, state = $5, zip_code = $6,
		   county = $7, region_code = $8, status = $9, latitude = $10,
		   longitude = $11, updated_at = $13`,
		org.ID, org.Name, org.Address, org.City, org.State, org.ZipCode,
		org.County, org.RegionCode, string(org.Status), org.Latitude,
		org.Longitude, org.CreatedAt, org.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert organization %s", org.ID)
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	var o model.Organization
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, address, city, state, zip_code, county, region_code, status, latitude, longitude, created_at, updated_at
		 FROM organizations WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.Name, &o.Address, &o.City, &o.State, &o.ZipCode,
		&o.County, &o.RegionCode, &o.Status, &o.Latitude, &o.Longitude,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get organization %s", id)
	}
	return &o, nil
}

func (s *PostgresStore) ListOrganizations(ctx context.Context, filter OrgFilter) ([]model.Organization, error) {
	query := `SELECT id, name, address, city, state, zip_code, county, region_code, status, latitude, longitude, created_at, updated_at
	          FROM organizations WHERE true`
	args := []any{}
	argIdx := 1

	if filter.RegionCode != "" {
		query += fmt.Sprintf(` AND region_code = $%d`, argIdx)
		args = append(args, filter.RegionCode)
		argIdx++
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY name`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list organizations")
	}
	defer rows.Close()

	return scanOrganizations(rows)
}

func (s *PostgresStore) ListUngeocodedOrganizations(ctx context.Context, limit int) ([]model.Organization, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, address, city, state, zip_code, county, region_code, status, latitude, longitude, created_at, updated_at
		 FROM organizations
		 WHERE latitude IS NULL AND city <> '' AND state <> ''
		 ORDER BY name LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ungeocoded organizations")
	}
	defer rows.Close()

	return scanOrganizations(rows)
}

func (s *PostgresStore) UpdateOrganizationCoordinates(ctx context.Context, id string, lat, lon float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE organizations SET latitude = $1, longitude = $2, updated_at = $3 WHERE id = $4`,
		lat, lon, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update organization coordinates %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("organization not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpsertPerson(ctx context.Context, p *model.Person) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.New().String()
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO people
		 (id, organization_id, first_name, last_name, title, email, phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   organization_id = $2, first_name = $3, last_name = $4, title = $5,
		   email = $6, phone = $7, updated_at = $9`,
		p.ID, p.OrganizationID, p.FirstName, p.LastName, p.Title,
		p.Email, p.Phone, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert person %s", p.ID)
}

func (s *PostgresStore) ListPeople(ctx context.Context, orgID string) ([]model.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, first_name, last_name, title, email, phone, created_at, updated_at
		 FROM people WHERE organization_id = $1 ORDER BY last_name, first_name`,
		orgID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list people for %s", orgID)
	}
	defer rows.Close()

	var people []model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.FirstName, &p.LastName,
			&p.Title, &p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan person")
		}
		people = append(people, p)
	}
	return people, eris.Wrap(rows.Err(), "postgres: list people iterate")
}

func (s *PostgresStore) CreateMeeting(ctx context.Context, m *model.Meeting) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO meetings (id, organization_id, subject, notes, occurred_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.OrganizationID, m.Subject, m.Notes, m.OccurredAt, m.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert meeting for %s", m.OrganizationID)
}

func (s *PostgresStore) ListMeetings(ctx context.Context, orgID string) ([]model.Meeting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, subject, notes, occurred_at, created_at
		 FROM meetings WHERE organization_id = $1 ORDER BY occurred_at DESC`,
		orgID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list meetings for %s", orgID)
	}
	defer rows.Close()

	var meetings []model.Meeting
	for rows.Next() {
		var m model.Meeting
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.Subject, &m.Notes,
			&m.OccurredAt, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan meeting")
		}
		meetings = append(meetings, m)
	}
	return meetings, eris.Wrap(rows.Err(), "postgres: list meetings iterate")
}

func (s *PostgresStore) UpsertRegion(ctx context.Context, r model.Region) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO regions (code, name, latitude, longitude, min_lat, min_lon, max_lat, max_lon)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (code) DO UPDATE SET
		   name = $2, latitude = $3, longitude = $4,
		   min_lat = $5, min_lon = $6, max_lat = $7, max_lon = $8`,
		r.Code, r.Name, r.Latitude, r.Longitude,
		r.MinLat, r.MinLon, r.MaxLat, r.MaxLon,
	)
	return eris.Wrapf(err, "postgres: upsert region %s", r.Code)
}

func (s *PostgresStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT code, name, latitude, longitude, min_lat, min_lon, max_lat, max_lon
		 FROM regions ORDER BY code`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list regions")
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.Code, &r.Name, &r.Latitude, &r.Longitude,
			&r.MinLat, &r.MinLon, &r.MaxLat, &r.MaxLon); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region")
		}
		regions = append(regions, r)
	}
	return regions, eris.Wrap(rows.Err(), "postgres: list regions iterate")
}

func scanOrganizations(rows pgx.Rows) ([]model.Organization, error) {
	var orgs []model.Organization
	for rows.Next() {
		var o model.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Address, &o.City, &o.State,
			&o.ZipCode, &o.County, &o.RegionCode, &o.Status, &o.Latitude,
			&o.Longitude, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan organization")
		}
		orgs = append(orgs, o)
	}
	return orgs, eris.Wrap(rows.Err(), "postgres: organizations iterate")
}
