package container

import (
	"github.com/juju/errors"
)

// Category is one of the four kinds of service the container manages,
// named by its top-level configuration section.
type Category string

const (
	ConnectionCategory      Category = "dbal"
	CacheCategory           Category = "cache"
	EntityManagerCategory   Category = "orm"
	DocumentManagerCategory Category = "odm"
)

// Categories lists every category in normalization order: entity and
// document manager defaults refer to the connection and cache defaults.
var Categories = []Category{ConnectionCategory, CacheCategory, EntityManagerCategory, DocumentManagerCategory}

// DefaultName is the default instance name of every category unless the
// section sets its own.
const DefaultName = "default"

type categoryKeys struct {
	display    string
	collection string
	defaultKey string
}

var keys = map[Category]categoryKeys{
	ConnectionCategory:      {"connection", "connections", "defaultConnection"},
	CacheCategory:           {"cache instance", "instances", "defaultCacheInstance"},
	EntityManagerCategory:   {"entity manager", "entityManagers", "defaultEntityManager"},
	DocumentManagerCategory: {"document manager", "documentManagers", "defaultDocumentManager"},
}

// String returns the human name, e.g. "cache instance".
func (c Category) String() string {
	if k, ok := keys[c]; ok {
		return k.display
	}
	return string(c)
}

// CollectionKey is the key holding named instances, e.g. "connections".
func (c Category) CollectionKey() string { return keys[c].collection }

// DefaultKey is the key naming the default instance, e.g.
// "defaultConnection".
func (c Category) DefaultKey() string { return keys[c].defaultKey }

// ParseCategory accepts a section name ("dbal") or a collection key
// ("connections").
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if s == string(c) || s == keys[c].collection {
			return c, nil
		}
	}
	return "", errors.NotValidf("category %q", s)
}
