package model

import "time"

// Person is a contact at a partner organization. People carry no address of
// their own; they inherit their organization's location on the map.
type Person struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Title          string    `json:"title,omitempty"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EntityID implements coordinates.Dependent.
func (p Person) EntityID() string { return p.ID }

// ParentID implements coordinates.Dependent.
func (p Person) ParentID() string { return p.OrganizationID }

// FullName returns the display name for lists and map popups.
func (p Person) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
