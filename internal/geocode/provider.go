package geocode

import "context"

// Provider represents a single external geocoding backend.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, address, country string) (*Result, error)
}

// Result holds one provider's best match for an address.
type Result struct {
	Latitude         float64
	Longitude        float64
	FormattedAddress string
	Accuracy         Accuracy
}

// valid reports whether the result passes range validation. Invalid results
// are discarded as if the provider had failed.
func (r *Result) valid() bool {
	if r.Latitude < -90 || r.Latitude > 90 {
		return false
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		return false
	}
	return r.FormattedAddress != ""
}
