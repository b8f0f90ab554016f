package regions

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/db"
	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/model"
)

// Default attribute field names in chapter boundary exports. DBF limits
// field names to ten characters.
const (
	defaultCodeField = "REGION"
	defaultNameField = "REGION_NAM"
)

// RegionStore is the slice of the store this package needs.
type RegionStore interface {
	UpsertRegion(ctx context.Context, r model.Region) error
}

// Loader reads chapter boundary shapefiles into region records.
type Loader struct {
	store     RegionStore
	client    *http.Client
	tempDir   string
	codeField string
	nameField string
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the client used to download boundary archives.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithTempDir sets the working directory for downloaded archives.
func WithTempDir(dir string) Option {
	return func(l *Loader) { l.tempDir = dir }
}

// WithFields overrides the shapefile attribute fields holding the region
// code and name.
func WithFields(codeField, nameField string) Option {
	return func(l *Loader) {
		l.codeField = codeField
		l.nameField = nameField
	}
}

// NewLoader creates a boundary loader writing regions through store.
func NewLoader(store RegionStore, opts ...Option) *Loader {
	l := &Loader{
		store:     store,
		client:    http.DefaultClient,
		tempDir:   os.TempDir(),
		codeField: defaultCodeField,
		nameField: defaultNameField,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadURL downloads a zipped shapefile archive, extracts it, and loads the
// regions it contains.
func (l *Loader) LoadURL(ctx context.Context, url string) (int, error) {
	zipPath := filepath.Join(l.tempDir, "chapter-boundaries.zip")
	zap.L().Info("downloading chapter boundaries", zap.String("url", url))

	if err := downloadFile(ctx, l.client, url, zipPath); err != nil {
		return 0, eris.Wrap(err, "regions: download boundaries")
	}

	extractDir := filepath.Join(l.tempDir, "chapter-boundaries")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return 0, eris.Wrap(err, "regions: create extract dir")
	}
	if err := extractZIP(zipPath, extractDir); err != nil {
		return 0, eris.Wrap(err, "regions: extract boundaries")
	}

	shpPath, err := findFileByExt(extractDir, ".shp")
	if err != nil {
		return 0, eris.Wrap(err, "regions: find .shp file")
	}
	return l.LoadShapefile(ctx, shpPath)
}

// LoadShapefile aggregates chapter polygons by region code into one bounding
// box and centroid per region, then upserts each region. Returns the number
// of regions written.
func (l *Loader) LoadShapefile(ctx context.Context, shpPath string) (int, error) {
	regions, err := l.parse(shpPath)
	if err != nil {
		return 0, err
	}

	// Deterministic write order.
	codes := make([]string, 0, len(regions))
	for code := range regions {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if err := l.store.UpsertRegion(ctx, *regions[code]); err != nil {
			return 0, eris.Wrapf(err, "regions: upsert %s", code)
		}
	}

	zap.L().Info("chapter boundaries loaded",
		zap.String("shapefile", filepath.Base(shpPath)),
		zap.Int("regions", len(codes)),
	)
	return len(codes), nil
}

const regionBoundsMigration = `
CREATE TABLE IF NOT EXISTS region_bounds (
	region_code TEXT NOT NULL,
	chapter     TEXT NOT NULL,
	min_lat     DOUBLE PRECISION NOT NULL,
	min_lon     DOUBLE PRECISION NOT NULL,
	max_lat     DOUBLE PRECISION NOT NULL,
	max_lon     DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_region_bounds_code ON region_bounds(region_code);
`

// BulkLoadChapters COPY-loads one row per chapter polygon into region_bounds,
// replacing any previous load. The per-chapter rows let viewports be
// recomputed later without re-reading the shapefile.
func (l *Loader) BulkLoadChapters(ctx context.Context, pool db.Pool, shpPath string) (int64, error) {
	rows, err := l.parseChapters(shpPath)
	if err != nil {
		return 0, err
	}

	if _, err := pool.Exec(ctx, regionBoundsMigration); err != nil {
		return 0, eris.Wrap(err, "regions: create region_bounds")
	}
	if _, err := pool.Exec(ctx, `TRUNCATE region_bounds`); err != nil {
		return 0, eris.Wrap(err, "regions: truncate region_bounds")
	}

	n, err := db.CopyFrom(ctx, pool, "region_bounds",
		[]string{"region_code", "chapter", "min_lat", "min_lon", "max_lat", "max_lon"},
		rows,
	)
	if err != nil {
		return 0, eris.Wrap(err, "regions: copy chapters")
	}
	zap.L().Info("chapter bounds loaded", zap.Int64("rows", n))
	return n, nil
}

// parseChapters returns one COPY row per chapter record with a usable
// region code and geometry.
func (l *Loader) parseChapters(shpPath string) ([][]any, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "regions: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	codeIdx := fieldIndex(reader, l.codeField)
	nameIdx := fieldIndex(reader, l.nameField)
	if codeIdx < 0 {
		return nil, eris.Errorf("regions: field %s not found in shapefile", l.codeField)
	}

	var rows [][]any
	for reader.Next() {
		_, shape := reader.Shape()
		if shape == nil {
			continue
		}
		code := normalizeCode(reader.Attribute(codeIdx))
		box := shape.BBox()
		if code == "" || !validBox(box) {
			continue
		}
		chapter := ""
		if nameIdx >= 0 {
			chapter = strings.TrimSpace(trimDBF(reader.Attribute(nameIdx)))
		}
		rows = append(rows, []any{code, chapter, box.MinY, box.MinX, box.MaxY, box.MaxX})
	}
	return rows, nil
}

func (l *Loader) parse(shpPath string) (map[string]*model.Region, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "regions: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	codeIdx := fieldIndex(reader, l.codeField)
	nameIdx := fieldIndex(reader, l.nameField)
	if codeIdx < 0 {
		return nil, eris.Errorf("regions: field %s not found in shapefile", l.codeField)
	}

	bounds := make(map[string]*geom.Bounds)
	names := make(map[string]string)
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()
		if shape == nil {
			skipped++
			continue
		}

		code := normalizeCode(reader.Attribute(codeIdx))
		if code == "" {
			skipped++
			continue
		}

		box := shape.BBox()
		if !validBox(box) {
			skipped++
			continue
		}

		bounds[code] = extendBounds(bounds[code], box)
		if nameIdx >= 0 && names[code] == "" {
			names[code] = strings.TrimSpace(trimDBF(reader.Attribute(nameIdx)))
		}
	}

	if skipped > 0 {
		zap.L().Debug("regions: skipped shapefile records", zap.Int("skipped", skipped))
	}

	regions := make(map[string]*model.Region, len(bounds))
	for code, b := range bounds {
		lat, lon := boundsCenter(b)
		name := names[code]
		if name == "" {
			name = code
		}
		regions[code] = &model.Region{
			Code:      code,
			Name:      name,
			Latitude:  lat,
			Longitude: lon,
			MinLat:    b.Min(1),
			MinLon:    b.Min(0),
			MaxLat:    b.Max(1),
			MaxLon:    b.Max(0),
		}
	}
	return regions, nil
}

// normalizeCode turns a raw attribute value into a region code: trimmed,
// lowercased, spaces collapsed to hyphens.
func normalizeCode(raw string) string {
	code := strings.ToLower(strings.TrimSpace(trimDBF(raw)))
	return strings.Join(strings.Fields(code), "-")
}

func trimDBF(s string) string {
	return strings.TrimRight(s, "\x00")
}

// fieldIndex returns the index of a named field in the shapefile, or -1.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(trimDBF(f.String()), name) {
			return i
		}
	}
	return -1
}

// downloadFile downloads a URL to a local file.
func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "create file")
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, resp.Body); err != nil {
		return eris.Wrap(err, "write file")
	}
	return nil
}

// extractZIP extracts a ZIP archive flat into the destination directory.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open zip entry %s", f.Name)
		}

		outFile, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return eris.Wrapf(err, "create %s", destPath)
		}

		if _, err := io.Copy(outFile, rc); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return eris.Wrapf(err, "extract %s", f.Name)
		}
		_ = outFile.Close()
		_ = rc.Close()
	}
	return nil
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
