package msi

import (
	"strconv"

	"github.com/google/uuid"
)

// Tables always read regardless of the include list.
const (
	PropertyTable = "Property"
	FeatureTable  = "Feature"
)

// Info is the metadata and table content read from one package.
type Info struct {
	Path            string     `json:"Path" yaml:"Path"`
	Manufacturer    string     `json:"Manufacturer" yaml:"Manufacturer"`
	ProductName     string     `json:"ProductName" yaml:"ProductName"`
	ProductVersion  string     `json:"ProductVersion" yaml:"ProductVersion"`
	ProductCode     *uuid.UUID `json:"ProductCode" yaml:"ProductCode"`
	ProductLanguage *int       `json:"ProductLanguage" yaml:"ProductLanguage"`
	UpgradeCode     *uuid.UUID `json:"UpgradeCode" yaml:"UpgradeCode"`

	// TableNames lists every table in _Tables order.
	TableNames []string `json:"TableNames" yaml:"TableNames"`
	// Tables maps every table name to its rows. Tables that were not
	// selected for reading map to an empty slice.
	Tables map[string][]Record `json:"Tables" yaml:"Tables"`
}

// Feature is the typed view of a Feature table row.
type Feature struct {
	Feature     string
	Parent      string
	Title       string
	Description string
	Display     int
	Level       int
	Directory   string
	Attributes  int
}

// Properties returns the Property table as a name/value map.
func (i *Info) Properties() map[string]string {
	props := make(map[string]string, len(i.Tables[PropertyTable]))
	for _, rec := range i.Tables[PropertyTable] {
		name, _ := rec.Get("Property")
		value, _ := rec.Get("Value")
		props[name] = value
	}
	return props
}

// Features returns the Feature table rows.
func (i *Info) Features() []Feature {
	rows := i.Tables[FeatureTable]
	features := make([]Feature, 0, len(rows))
	for _, rec := range rows {
		get := func(col string) string {
			v, _ := rec.Get(col)
			return v
		}
		atoi := func(col string) int {
			n, _ := strconv.Atoi(get(col))
			return n
		}
		features = append(features, Feature{
			Feature:     get("Feature"),
			Parent:      get("Feature_Parent"),
			Title:       get("Title"),
			Description: get("Description"),
			Display:     atoi("Display"),
			Level:       atoi("Level"),
			Directory:   get("Directory_"),
			Attributes:  atoi("Attributes"),
		})
	}
	return features
}

// applyProperties fills the identity fields from the Property table.
func (i *Info) applyProperties() {
	props := i.Properties()
	i.Manufacturer = props["Manufacturer"]
	i.ProductName = props["ProductName"]
	i.ProductVersion = props["ProductVersion"]
	i.ProductCode = parseGUID(props["ProductCode"])
	i.UpgradeCode = parseGUID(props["UpgradeCode"])
	if lang, err := strconv.Atoi(props["ProductLanguage"]); err == nil {
		i.ProductLanguage = &lang
	}
}

func parseGUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}
