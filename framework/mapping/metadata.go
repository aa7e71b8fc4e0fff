// Package mapping describes how entities and documents map onto tables and
// collections, and the drivers that load those descriptions.
//
// Metadata comes from YAML mapping files:
//
//	app.User:
//	  table: users
//	  repository: app.UserRepository
//	  fields:
//	    id:    {type: integer, id: true}
//	    email: {type: string, column: email_address}
//
// A Chain routes each entity name to the driver registered for its
// namespace (the part before the last dot).
package mapping

import (
	"sort"
	"strings"

	"github.com/juju/errors"
)

// FieldMapping maps one field onto a column.
type FieldMapping struct {
	Field    string `yaml:"-" json:"field"`
	Column   string `yaml:"column" json:"column,omitempty"`
	Type     string `yaml:"type" json:"type"`
	ID       bool   `yaml:"id" json:"id,omitempty"`
	Nullable bool   `yaml:"nullable" json:"nullable,omitempty"`
}

// ClassMetadata is the mapping of one entity or document.
type ClassMetadata struct {
	Name       string         `yaml:"-" json:"name"`
	Table      string         `yaml:"table" json:"table,omitempty"`
	Collection string         `yaml:"collection" json:"collection,omitempty"`
	Repository string         `yaml:"repository" json:"repository,omitempty"`
	Fields     []FieldMapping `yaml:"-" json:"fields"`
}

// Field returns the mapping of the named field.
func (m *ClassMetadata) Field(name string) (FieldMapping, bool) {
	for _, f := range m.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldMapping{}, false
}

// Identifier returns the names of the id fields.
func (m *ClassMetadata) Identifier() []string {
	var ids []string
	for _, f := range m.Fields {
		if f.ID {
			ids = append(ids, f.Field)
		}
	}
	return ids
}

// Columns returns the column names in field order. A field without an
// explicit column is named after itself.
func (m *ClassMetadata) Columns() []string {
	cols := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		if f.Column == "" {
			cols = append(cols, f.Field)
			continue
		}
		cols = append(cols, f.Column)
	}
	return cols
}

// Namespace returns the part of an entity name before its last dot.
func Namespace(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

// Qualify joins a namespace and a short name.
func Qualify(namespace, short string) string {
	if namespace == "" {
		return short
	}
	return namespace + "." + short
}

// InNamespace reports whether name lives in namespace or below it. Every
// name is in the empty namespace.
func InNamespace(name, namespace string) bool {
	if namespace == "" {
		return true
	}
	return strings.HasPrefix(name, namespace+".")
}

// ExpandAlias rewrites "Alias:Short" using aliases (alias → namespace).
// Names without a colon are returned as they are.
func ExpandAlias(name string, aliases map[string]string) (string, error) {
	alias, short, ok := strings.Cut(name, ":")
	if !ok {
		return name, nil
	}
	ns, found := aliases[alias]
	if !found {
		return "", errors.NotFoundf("namespace alias %q", alias)
	}
	return Qualify(ns, short), nil
}

func sortFields(fields []FieldMapping) {
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].ID != fields[j].ID {
			return fields[i].ID
		}
		return fields[i].Field < fields[j].Field
	})
}
