package geocode

import (
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// StaticCoordinate is one curated city entry in the static table.
type StaticCoordinate struct {
	Latitude  float64  `yaml:"latitude"`
	Longitude float64  `yaml:"longitude"`
	Accuracy  Accuracy `yaml:"accuracy"`
	Source    string   `yaml:"source"`
}

// StaticTable is a zero-latency lookup for known city/state pairs, consulted
// ahead of the geocoding service to skip network and cache I/O entirely.
// Runtime inserts live for the process only.
type StaticTable struct {
	mu      sync.RWMutex
	entries map[string]StaticCoordinate
}

// NewStaticTable creates an empty static table.
func NewStaticTable() *StaticTable {
	return &StaticTable{entries: make(map[string]StaticCoordinate)}
}

// Lookup returns the entry for an exact normalized "city, state" match.
// No fuzzy or partial matching.
func (t *StaticTable) Lookup(city, state string) (StaticCoordinate, bool) {
	key := LocationKey(city, state)
	if key == "" {
		return StaticCoordinate{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.entries[key]
	return c, ok
}

// Insert adds or overwrites an entry.
func (t *StaticTable) Insert(city, state string, coord StaticCoordinate) {
	key := LocationKey(city, state)
	if key == "" {
		return
	}
	if coord.Accuracy == "" {
		coord.Accuracy = AccuracyApproximate
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = coord
}

// Len returns the number of entries.
func (t *StaticTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// staticSeedFile is the YAML shape of a curated city list.
type staticSeedFile struct {
	Entries []staticSeedEntry `yaml:"entries"`
}

type staticSeedEntry struct {
	City      string  `yaml:"city"`
	State     string  `yaml:"state"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Accuracy  string  `yaml:"accuracy"`
	Source    string  `yaml:"source"`
}

// LoadStaticTable reads a curated city list from a YAML file.
func LoadStaticTable(path string) (*StaticTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read static table")
	}

	var seed staticSeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, eris.Wrap(err, "geocode: parse static table")
	}

	t := NewStaticTable()
	for _, e := range seed.Entries {
		t.Insert(e.City, e.State, StaticCoordinate{
			Latitude:  e.Latitude,
			Longitude: e.Longitude,
			Accuracy:  Accuracy(e.Accuracy),
			Source:    e.Source,
		})
	}
	return t, nil
}
