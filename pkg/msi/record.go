package msi

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Record is one row of an installer database table. Columns and Values are
// parallel and keep the order the database reports.
type Record struct {
	Table   string
	Columns []string
	Values  []string
}

// Get returns the value of column, matched exactly.
func (r Record) Get(column string) (string, bool) {
	for i, c := range r.Columns {
		if c == column && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return "", false
}

// MarshalJSON renders {"Table": ..., "Fields": {...}} with fields in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	table, err := json.Marshal(r.Table)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"Table":`)
	buf.Write(table)
	buf.WriteString(`,"Fields":{`)
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.value(i))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// MarshalYAML keeps column order, which a plain map would lose.
func (r Record) MarshalYAML() (interface{}, error) {
	fields := &yaml.Node{Kind: yaml.MappingNode}
	for i, c := range r.Columns {
		fields.Content = append(fields.Content, str(c), str(r.value(i)))
	}
	return &yaml.Node{
		Kind:    yaml.MappingNode,
		Content: []*yaml.Node{str("Table"), str(r.Table), str("Fields"), fields},
	}, nil
}

func (r Record) value(i int) string {
	if i < len(r.Values) {
		return r.Values[i]
	}
	return ""
}

func str(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
