// Package model defines the relationship-manager domain entities.
package model

import (
	"strings"
	"time"
)

// OrgStatus represents the engagement state of an organization.
type OrgStatus string

const (
	OrgStatusProspect OrgStatus = "prospect"
	OrgStatusActive   OrgStatus = "active"
	OrgStatusDormant  OrgStatus = "dormant"
)

// Organization is a partner organization tracked by the relationship manager.
type Organization struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city,omitempty"`
	State      string    `json:"state,omitempty"`
	ZipCode    string    `json:"zip_code,omitempty"`
	County     string    `json:"county,omitempty"`
	RegionCode string    `json:"region_code,omitempty"`
	Status     OrgStatus `json:"status,omitempty"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EntityID implements coordinates.Addressable.
func (o Organization) EntityID() string { return o.ID }

// AddressLine implements coordinates.Addressable.
func (o Organization) AddressLine() string { return o.Address }

// CityName implements coordinates.Addressable.
func (o Organization) CityName() string { return o.City }

// StateCode implements coordinates.Addressable.
func (o Organization) StateCode() string { return o.State }

// HasCoordinates reports whether the organization already carries a geocoded point.
func (o Organization) HasCoordinates() bool {
	return o.Latitude != nil && o.Longitude != nil
}

// HasLocation reports whether the organization has enough address data to geocode.
func (o Organization) HasLocation() bool {
	return strings.TrimSpace(o.City) != "" && strings.TrimSpace(o.State) != ""
}
