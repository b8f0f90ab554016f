// Package store persists relationship-manager entities. Two backends exist:
// PostgreSQL for deployments and SQLite for single-user desktop use.
package store

import (
	"context"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/model"
)

// OrgFilter specifies criteria for listing organizations.
type OrgFilter struct {
	RegionCode string          `json:"region_code,omitempty"`
	State      string          `json:"state,omitempty"`
	Status     model.OrgStatus `json:"status,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Offset     int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the relationship manager.
type Store interface {
	// Organizations
	UpsertOrganization(ctx context.Context, org *model.Organization) error
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	ListOrganizations(ctx context.Context, filter OrgFilter) ([]model.Organization, error)
	ListUngeocodedOrganizations(ctx context.Context, limit int) ([]model.Organization, error)
	UpdateOrganizationCoordinates(ctx context.Context, id string, lat, lon float64) error

	// People
	UpsertPerson(ctx context.Context, p *model.Person) error
	ListPeople(ctx context.Context, orgID string) ([]model.Person, error)

	// Meetings
	CreateMeeting(ctx context.Context, m *model.Meeting) error
	ListMeetings(ctx context.Context, orgID string) ([]model.Meeting, error)

	// Regions
	UpsertRegion(ctx context.Context, r model.Region) error
	ListRegions(ctx context.Context) ([]model.Region, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
