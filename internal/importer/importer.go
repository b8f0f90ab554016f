// Package importer loads organization rosters from XLSX workbooks, the
// format chapters export from their existing spreadsheets.
package importer

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/geocode"
	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/model"
)

// OrgStore is the slice of the store this package needs.
type OrgStore interface {
	UpsertOrganization(ctx context.Context, org *model.Organization) error
}

// Options configures a roster import.
type Options struct {
	SheetName  string // if empty, the first sheet
	RegionCode string // applied to every imported organization
}

// Result summarizes an import.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// columnAliases maps header spellings seen in chapter exports to canonical
// column names.
var columnAliases = map[string]string{
	"name":         "name",
	"organization": "name",
	"org name":     "name",
	"address":      "address",
	"street":       "address",
	"city":         "city",
	"state":        "state",
	"st":           "state",
	"zip":          "zip",
	"zip code":     "zip",
	"zipcode":      "zip",
	"county":       "county",
	"region":       "region",
	"status":       "status",
}

// ImportOrganizations reads an XLSX roster and upserts one organization per
// data row. Rows without a name are skipped. The first row must be a header.
func ImportOrganizations(ctx context.Context, store OrgStore, path string, opts Options) (*Result, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open workbook")
	}

	sheet, err := pickSheet(f, opts.SheetName)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return &Result{}, nil
	}

	cols := mapHeader(sheet.Rows[0])
	if _, ok := cols["name"]; !ok {
		return nil, eris.New("importer: no name column in header row")
	}

	res := &Result{}
	for _, row := range sheet.Rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "importer: cancelled")
		}

		org := rowToOrganization(row, cols)
		if org == nil {
			res.Skipped++
			continue
		}
		if opts.RegionCode != "" {
			org.RegionCode = opts.RegionCode
		}

		if err := store.UpsertOrganization(ctx, org); err != nil {
			return nil, eris.Wrapf(err, "importer: upsert %s", org.Name)
		}
		res.Imported++
	}

	zap.L().Info("roster imported",
		zap.String("sheet", sheet.Name),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("importer: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("importer: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

// mapHeader maps canonical column names to cell indices.
func mapHeader(row *xlsx.Row) map[string]int {
	cols := make(map[string]int)
	for i, cell := range row.Cells {
		header := strings.ToLower(strings.TrimSpace(cell.String()))
		if canonical, ok := columnAliases[header]; ok {
			if _, taken := cols[canonical]; !taken {
				cols[canonical] = i
			}
		}
	}
	return cols
}

func rowToOrganization(row *xlsx.Row, cols map[string]int) *model.Organization {
	name := cellAt(row, cols, "name")
	if name == "" {
		return nil
	}

	org := &model.Organization{
		Name:       name,
		Address:    cellAt(row, cols, "address"),
		City:       cellAt(row, cols, "city"),
		State:      geocode.StateCode(cellAt(row, cols, "state")),
		ZipCode:    cellAt(row, cols, "zip"),
		County:     cellAt(row, cols, "county"),
		RegionCode: strings.ToLower(cellAt(row, cols, "region")),
	}

	switch strings.ToLower(cellAt(row, cols, "status")) {
	case "active":
		org.Status = model.OrgStatusActive
	case "dormant":
		org.Status = model.OrgStatusDormant
	default:
		org.Status = model.OrgStatusProspect
	}
	return org
}

func cellAt(row *xlsx.Row, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[idx].String())
}
