package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

var orgColumns = []string{
	"id", "name", "address", "city", "state", "zip_code", "county",
	"region_code", "status", "latitude", "longitude", "created_at", "updated_at",
}

func TestPostgresStore_GetOrganization_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, address`).
		WithArgs("nonexistent-org").
		WillReturnError(pgx.ErrNoRows)

	org, err := s.GetOrganization(context.Background(), "nonexistent-org")
	require.NoError(t, err)
	assert.Nil(t, org)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrganization(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	lat, lon := 27.9506, -82.4572
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, name, address`).
		WithArgs("org-1").
		WillReturnRows(pgxmock.NewRows(orgColumns).AddRow(
			"org-1", "Tampa Food Bank", "123 Main St", "Tampa", "FL", "33602",
			"Hillsborough", "central-florida", "active", &lat, &lon, now, now,
		))

	org, err := s.GetOrganization(context.Background(), "org-1")
	require.NoError(t, err)
	require.NotNil(t, org)
	assert.Equal(t, "Tampa Food Bank", org.Name)
	assert.Equal(t, model.OrgStatusActive, org.Status)
	require.True(t, org.HasCoordinates())
	assert.InDelta(t, 27.9506, *org.Latitude, 0.0001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertOrganization_AssignsID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs(pgxmock.AnyArg(), "Tampa Food Bank", "", "Tampa", "FL", "", "",
			"", "prospect", pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	org := &model.Organization{Name: "Tampa Food Bank", City: "Tampa", State: "FL"}
	err := s.UpsertOrganization(context.Background(), org)
	require.NoError(t, err)
	assert.NotEmpty(t, org.ID)
	assert.Equal(t, model.OrgStatusProspect, org.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListUngeocodedOrganizations(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`WHERE latitude IS NULL`).
		WithArgs(500).
		WillReturnRows(pgxmock.NewRows(orgColumns).
			AddRow("org-1", "A", "", "Tampa", "FL", "", "", "", "prospect",
				(*float64)(nil), (*float64)(nil), now, now).
			AddRow("org-2", "B", "", "Miami", "FL", "", "", "", "prospect",
				(*float64)(nil), (*float64)(nil), now, now))

	orgs, err := s.ListUngeocodedOrganizations(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.False(t, orgs[0].HasCoordinates())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateOrganizationCoordinates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE organizations SET latitude`).
		WithArgs(27.9506, -82.4572, pgxmock.AnyArg(), "org-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateOrganizationCoordinates(context.Background(), "org-1", 27.9506, -82.4572)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateOrganizationCoordinates_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE organizations SET latitude`).
		WithArgs(27.9506, -82.4572, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateOrganizationCoordinates(context.Background(), "missing", 27.9506, -82.4572)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRegion(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("central-florida", "Central Florida", 28.3852, -81.5,
			26.9, -83.0, 29.4, -80.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertRegion(context.Background(), model.Region{
		Code: "central-florida", Name: "Central Florida",
		Latitude: 28.3852, Longitude: -81.5,
		MinLat: 26.9, MinLon: -83.0, MaxLat: 29.4, MaxLon: -80.0,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRegions(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT code, name, latitude`).
		WillReturnRows(pgxmock.NewRows([]string{
			"code", "name", "latitude", "longitude", "min_lat", "min_lon", "max_lat", "max_lon",
		}).AddRow("georgia", "Georgia", 32.1656, -82.9001, 30.3, -85.6, 35.0, -80.8))

	regions, err := s.ListRegions(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "georgia", regions[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateMeeting(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO meetings`).
		WithArgs(pgxmock.AnyArg(), "org-1", "Quarterly check-in", "",
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	m := &model.Meeting{
		OrganizationID: "org-1",
		Subject:        "Quarterly check-in",
		OccurredAt:     time.Now().UTC(),
	}
	err := s.CreateMeeting(context.Background(), m)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
