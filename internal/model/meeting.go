package model

import "time"

// Meeting records an interaction with an organization.
type Meeting struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Subject        string    `json:"subject"`
	Notes          string    `json:"notes,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
	CreatedAt      time.Time `json:"created_at"`
}
