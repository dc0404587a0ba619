package msi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/msikit/pkg/download"
)

type fakeTable struct {
	columns []string
	rows    [][]string
}

// fakeOpener serves an in-memory database. order is the _Tables listing.
type fakeOpener struct {
	order     []string
	tables    map[string]fakeTable
	openErr   error
	failTable string

	opened  int
	closed  int
	queries []string
}

func (o *fakeOpener) Open(string) (Database, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.opened++
	return &fakeDB{o: o}, nil
}

type fakeDB struct{ o *fakeOpener }

func (d *fakeDB) OpenView(query string) (View, error) {
	d.o.queries = append(d.o.queries, query)
	name := strings.TrimSuffix(strings.TrimPrefix(query, "SELECT * FROM `"), "`")
	if name == d.o.failTable {
		return nil, fmt.Errorf("table %s is corrupt", name)
	}
	if name == "_Tables" {
		t := fakeTable{columns: []string{"Name"}}
		for _, n := range d.o.order {
			t.rows = append(t.rows, []string{n})
		}
		return &fakeView{t: t}, nil
	}
	t, ok := d.o.tables[name]
	if !ok {
		return nil, fmt.Errorf("no such table %s", name)
	}
	return &fakeView{t: t}, nil
}

func (d *fakeDB) Close() error {
	d.o.closed++
	return nil
}

type fakeView struct {
	t   fakeTable
	pos int
}

func (v *fakeView) Columns() ([]string, error) { return v.t.columns, nil }

func (v *fakeView) Fetch() ([]string, bool, error) {
	if v.pos >= len(v.t.rows) {
		return nil, false, nil
	}
	row := v.t.rows[v.pos]
	v.pos++
	return row, true, nil
}

func (v *fakeView) Close() error { return nil }

func testPackage() *fakeOpener {
	return &fakeOpener{
		order: []string{"Property", "Feature", "File", "CustomAction", "Registry", "_Validation"},
		tables: map[string]fakeTable{
			"Property": {
				columns: []string{"Property", "Value"},
				rows: [][]string{
					{"Manufacturer", "Contoso"},
					{"ProductName", "Test Product"},
					{"ProductVersion", "1.2.3"},
					{"ProductCode", "{E1724ABC-A8D6-4D88-BBED-2E077C9AE6D2}"},
					{"ProductLanguage", "1033"},
					{"UpgradeCode", "{5F3CE9D6-61F4-4D47-B0F3-A1C3E5A22B1E}"},
				},
			},
			"Feature": {
				columns: []string{"Feature", "Feature_Parent", "Title", "Description", "Display", "Level", "Directory_", "Attributes"},
				rows: [][]string{
					{"Main", "", "Main Feature", "Everything", "2", "1", "INSTALLDIR", "24"},
				},
			},
			"File": {
				columns: []string{"File", "Component_", "FileName"},
				rows:    [][]string{{"app.exe", "Main", "app.exe"}},
			},
			"CustomAction": {
				columns: []string{"Action", "Type", "Source", "Target"},
				rows:    [][]string{{"SetDir", "51", "INSTALLDIR", "[ProgramFilesFolder]"}},
			},
			"Registry": {
				columns: []string{"Registry", "Root", "Key", "Name", "Value", "Component_"},
				rows:    [][]string{{"reg1", "2", `Software\Contoso`, "Installed", "#1", "Main"}},
			},
			"_Validation": {
				columns: []string{"Table", "Column", "Nullable"},
				rows:    [][]string{{"File", "File", "N"}},
			},
		},
	}
}

// testReader returns a reader whose release poll succeeds immediately.
func testReader(t *testing.T, opener DatabaseOpener) (*Reader, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.msi")
	require.NoError(t, os.WriteFile(path, []byte("msi"), 0644))
	r := NewReader(opener, nil)
	r.Release.ForceGC = false
	r.probe = func(string) error { return nil }
	return r, path
}

func TestReadFileReadsPropertyAndFeature(t *testing.T) {
	opener := testPackage()
	r, path := testReader(t, opener)

	info, err := r.ReadFile(context.Background(), path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, info.Path)
	assert.Equal(t, "Contoso", info.Manufacturer)
	assert.Equal(t, "Test Product", info.ProductName)
	assert.Equal(t, "1.2.3", info.ProductVersion)
	require.NotNil(t, info.ProductCode)
	assert.Equal(t, "e1724abc-a8d6-4d88-bbed-2e077c9ae6d2", info.ProductCode.String())
	require.NotNil(t, info.ProductLanguage)
	assert.Equal(t, 1033, *info.ProductLanguage)
	require.NotNil(t, info.UpgradeCode)

	assert.Equal(t, opener.order, info.TableNames)
	assert.Len(t, info.Tables["Property"], 6)
	assert.Len(t, info.Tables["Feature"], 1)
	for _, name := range []string{"File", "CustomAction", "Registry", "_Validation"} {
		rows, ok := info.Tables[name]
		assert.True(t, ok, name)
		assert.NotNil(t, rows, name)
		assert.Empty(t, rows, name)
	}
	assert.Equal(t, 1, opener.closed)
	assert.NotContains(t, opener.queries, "SELECT * FROM `File`")
}

func TestReadFileIncludePatterns(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		read    []string
	}{
		{"exact", []string{"Registry"}, []string{"Registry"}},
		{"star", []string{"Cust*"}, []string{"CustomAction"}},
		{"question", []string{"?ile"}, []string{"File"}},
		{"class", []string{"[FR]*"}, []string{"File", "Registry"}},
		{"case sensitive", []string{"registry"}, nil},
		{"underscore tables", []string{"_*"}, []string{"_Validation"}},
		{"everything", []string{"*"}, []string{"File", "CustomAction", "Registry", "_Validation"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, path := testReader(t, testPackage())
			info, err := r.ReadFile(context.Background(), path, tt.include)
			require.NoError(t, err)
			for _, name := range []string{"File", "CustomAction", "Registry", "_Validation"} {
				want := 0
				for _, n := range tt.read {
					if n == name {
						want = 1
					}
				}
				assert.Len(t, info.Tables[name], want, name)
			}
		})
	}
}

func TestReadFileMergeModuleWithoutFeature(t *testing.T) {
	opener := testPackage()
	opener.order = []string{"Property", "File"}
	delete(opener.tables, "Feature")
	r, path := testReader(t, opener)

	info, err := r.ReadFile(context.Background(), path, nil)
	require.NoError(t, err)
	rows, ok := info.Tables["Feature"]
	assert.True(t, ok)
	assert.Empty(t, rows)
	assert.Equal(t, []string{"Property", "File"}, info.TableNames)
}

func TestReadFileInvalidProductCode(t *testing.T) {
	opener := testPackage()
	props := opener.tables["Property"]
	props.rows = [][]string{{"ProductCode", "not-a-guid"}, {"ProductLanguage", "en"}}
	opener.tables["Property"] = props
	r, path := testReader(t, opener)

	info, err := r.ReadFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Nil(t, info.ProductCode)
	assert.Nil(t, info.ProductLanguage)
	assert.Nil(t, info.UpgradeCode)
}

func TestReadFileInvalidMsi(t *testing.T) {
	t.Run("open fails", func(t *testing.T) {
		opener := testPackage()
		opener.openErr = errors.New("not an installer database")
		r, path := testReader(t, opener)

		info, err := r.ReadFile(context.Background(), path, nil)
		assert.Nil(t, info)
		var invalid *InvalidMsiError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, path, invalid.Path)
		assert.ErrorIs(t, err, opener.openErr)
	})

	t.Run("missing file", func(t *testing.T) {
		r, _ := testReader(t, testPackage())
		info, err := r.ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope.msi"), nil)
		assert.Nil(t, info)
		var invalid *InvalidMsiError
		assert.True(t, errors.As(err, &invalid))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("table read fails", func(t *testing.T) {
		opener := testPackage()
		opener.failTable = "Feature"
		r, path := testReader(t, opener)

		info, err := r.ReadFile(context.Background(), path, nil)
		assert.Nil(t, info)
		var invalid *InvalidMsiError
		assert.True(t, errors.As(err, &invalid))
		assert.Equal(t, 1, opener.closed, "database is closed even when reading fails")
	})
}

func TestReadFileInvalidPattern(t *testing.T) {
	opener := testPackage()
	r, path := testReader(t, opener)
	_, err := r.ReadFile(context.Background(), path, []string{"[unclosed"})
	require.Error(t, err)
	assert.Zero(t, opener.opened)
}

func TestReadFileIsRepeatable(t *testing.T) {
	r, path := testReader(t, testPackage())
	first, err := r.ReadFile(context.Background(), path, []string{"*"})
	require.NoError(t, err)
	second, err := r.ReadFile(context.Background(), path, []string{"*"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReleaseTimeoutIsNotFatal(t *testing.T) {
	r, path := testReader(t, testPackage())
	now := time.Unix(0, 0)
	probes := 0
	r.probe = func(string) error {
		probes++
		return errors.New("sharing violation")
	}
	r.now = func() time.Time { return now }
	r.sleep = func(d time.Duration) { now = now.Add(d) }

	info, err := r.ReadFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "Test Product", info.ProductName)
	assert.Equal(t, 11, probes)
	assert.Equal(t, 100*time.Millisecond, now.Sub(time.Unix(0, 0)))
}

func TestReleaseZeroTimeoutProbesOnce(t *testing.T) {
	r, path := testReader(t, testPackage())
	r.Release.Timeout = 0
	probes := 0
	r.probe = func(string) error {
		probes++
		return errors.New("sharing violation")
	}
	_, err := r.ReadFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, probes)
}

type fakeFetcher struct {
	src   string
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL, _ string) (download.Result, error) {
	f.calls++
	if rawURL == "https://example.com/broken.msi" {
		return download.Result{}, download.ErrDownloadFailed
	}
	return download.Result{Path: f.src}, nil
}

func TestReadURL(t *testing.T) {
	r, path := testReader(t, testPackage())
	fetcher := &fakeFetcher{src: path}
	r.Fetcher = fetcher

	info, err := r.ReadURL(context.Background(), "https://example.com/test.msi", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Test Product", info.ProductName)
	assert.Equal(t, 1, fetcher.calls)
	assert.FileExists(t, path, "pinned download is kept")

	_, err = r.ReadURL(context.Background(), "https://example.com/broken.msi", "", nil)
	assert.ErrorIs(t, err, download.ErrDownloadFailed)

	r.Fetcher = nil
	_, err = r.ReadURL(context.Background(), "https://example.com/test.msi", "", nil)
	assert.Error(t, err)
}

func TestInfoProjections(t *testing.T) {
	r, path := testReader(t, testPackage())
	info, err := r.ReadFile(context.Background(), path, nil)
	require.NoError(t, err)

	props := info.Properties()
	assert.Equal(t, "Contoso", props["Manufacturer"])
	assert.Len(t, props, 6)

	features := info.Features()
	require.Len(t, features, 1)
	assert.Equal(t, Feature{
		Feature:     "Main",
		Title:       "Main Feature",
		Description: "Everything",
		Display:     2,
		Level:       1,
		Directory:   "INSTALLDIR",
		Attributes:  24,
	}, features[0])
}

func TestRecordMarshalKeepsColumnOrder(t *testing.T) {
	rec := Record{Table: "_Validation", Columns: []string{"Table", "Column", "Nullable"}, Values: []string{"File", "File", "N"}}

	j, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Table":"_Validation","Fields":{"Table":"File","Column":"File","Nullable":"N"}}`, string(j))
	assert.Equal(t, `{"Table":"_Validation","Fields":{"Table":"File","Column":"File","Nullable":"N"}}`, string(j))

	y, err := yaml.Marshal(rec)
	require.NoError(t, err)
	out := string(y)
	assert.True(t, strings.HasPrefix(out, "Table: _Validation\nFields:\n"), out)
	table := strings.Index(out, "    Table: File")
	column := strings.Index(out, "    Column: File")
	nullable := strings.Index(out, "    Nullable:")
	assert.True(t, table > 0 && table < column && column < nullable, out)
}
