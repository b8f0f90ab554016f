package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultNominatimBaseURL = "https://nominatim.openstreetmap.org"

// NominatimProvider resolves addresses via an OpenStreetMap Nominatim server.
type NominatimProvider struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NominatimOption configures the NominatimProvider.
type NominatimOption func(*NominatimProvider)

// WithNominatimBaseURL points the provider at a different Nominatim server.
func WithNominatimBaseURL(u string) NominatimOption {
	return func(p *NominatimProvider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithNominatimHTTPClient sets a custom HTTP client.
func WithNominatimHTTPClient(hc *http.Client) NominatimOption {
	return func(p *NominatimProvider) {
		if hc != nil {
			p.httpClient = hc
		}
	}
}

// NewNominatimProvider creates a Nominatim provider. Nominatim's usage policy
// requires an identifying User-Agent.
func NewNominatimProvider(userAgent string, opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		baseURL:    defaultNominatimBaseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// nominatimPlace is one search result. Nominatim encodes lat/lon as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Class       string `json:"class"`
	Type        string `json:"type"`
	AddressType string `json:"addresstype"`
}

// Resolve implements Provider via the Nominatim search endpoint.
func (p *NominatimProvider) Resolve(ctx context.Context, address, country string) (*Result, error) {
	params := url.Values{
		"q":      {address},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if cc := countryCode(country); cc != "" {
		params.Set("countrycodes", cc)
	}

	reqURL := p.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(places) == 0 {
		return nil, nil
	}

	place := places[0]
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse lat")
	}
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse lon")
	}

	return &Result{
		Latitude:         lat,
		Longitude:        lon,
		FormattedAddress: place.DisplayName,
		Accuracy:         nominatimAccuracy(place.Class, place.Type, place.AddressType),
	}, nil
}

// nominatimAccuracy derives our accuracy taxonomy from the OSM class/type
// hint. Street-level matches are exact; settlements and coarser are
// approximate. Unknown hints are treated as approximate.
func nominatimAccuracy(class, osmType, addressType string) Accuracy {
	switch class {
	case "building", "highway", "amenity", "shop", "office":
		return AccuracyExact
	}
	switch osmType {
	case "house", "residential", "address":
		return AccuracyExact
	}
	if addressType == "house" || addressType == "building" || addressType == "road" {
		return AccuracyExact
	}
	return AccuracyApproximate
}

// countryCode maps a configured country value to Nominatim's ISO list form.
func countryCode(country string) string {
	switch strings.ToLower(strings.TrimSpace(country)) {
	case "":
		return ""
	case "usa", "us", "united states", "united states of america":
		return "us"
	default:
		c := strings.ToLower(strings.TrimSpace(country))
		if len(c) == 2 {
			return c
		}
		return ""
	}
}
