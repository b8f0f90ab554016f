package importer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/model"
)

type memStore struct {
	orgs []model.Organization
}

func (m *memStore) UpsertOrganization(_ context.Context, org *model.Organization) error {
	m.orgs = append(m.orgs, *org)
	return nil
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestImportOrganizations(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Roster": {
			{"Organization", "Address", "City", "State", "Zip", "Status"},
			{"Tampa Food Bank", "123 Main St", "Tampa", "FL", "33602", "Active"},
			{"Georgia Shelter", "", "Atlanta", "Georgia", "30303", ""},
		},
	})

	store := &memStore{}
	res, err := ImportOrganizations(context.Background(), store, path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Zero(t, res.Skipped)

	require.Len(t, store.orgs, 2)
	assert.Equal(t, "Tampa Food Bank", store.orgs[0].Name)
	assert.Equal(t, model.OrgStatusActive, store.orgs[0].Status)

	// Full state names are normalized to codes, missing status defaults.
	assert.Equal(t, "GA", store.orgs[1].State)
	assert.Equal(t, model.OrgStatusProspect, store.orgs[1].Status)
}

func TestImportOrganizations_SkipsNamelessRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Name", "City", "State"},
			{"", "Tampa", "FL"},
			{"Real Org", "Miami", "FL"},
		},
	})

	store := &memStore{}
	res, err := ImportOrganizations(context.Background(), store, path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Skipped)
}

func TestImportOrganizations_RegionOverride(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Name", "City", "State", "Region"},
			{"Org A", "Tampa", "FL", "something-else"},
		},
	})

	store := &memStore{}
	_, err := ImportOrganizations(context.Background(), store, path, Options{RegionCode: "central-florida"})
	require.NoError(t, err)
	require.Len(t, store.orgs, 1)
	assert.Equal(t, "central-florida", store.orgs[0].RegionCode)
}

func TestImportOrganizations_HeaderAliases(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"ORG NAME", "Street", "City", "ST", "Zip Code"},
			{"Org A", "1 Elm St", "Tampa", "FL", "33602"},
		},
	})

	store := &memStore{}
	_, err := ImportOrganizations(context.Background(), store, path, Options{})
	require.NoError(t, err)
	require.Len(t, store.orgs, 1)
	assert.Equal(t, "1 Elm St", store.orgs[0].Address)
	assert.Equal(t, "33602", store.orgs[0].ZipCode)
}

func TestImportOrganizations_NoNameColumn(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"City", "State"},
			{"Tampa", "FL"},
		},
	})

	_, err := ImportOrganizations(context.Background(), &memStore{}, path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name column")
}

func TestImportOrganizations_SheetNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"Name"}},
	})

	_, err := ImportOrganizations(context.Background(), &memStore{}, path, Options{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
