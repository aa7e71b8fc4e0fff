// Package odm provides the document manager: a lazily dialed MongoDB
// session plus the mapping and caching configuration used to turn document
// names into collections.
package odm

import (
	"github.com/km-arc/go-persistence/framework/cache"
	"github.com/km-arc/go-persistence/framework/mapping"
)

// ProxyConfig holds the "proxy" section.
type ProxyConfig struct {
	AutoGenerate bool
	Namespace    string
	Dir          string
}

// HydratorConfig holds the "hydrator" section.
type HydratorConfig struct {
	Namespace string
	Dir       string
}

// Configuration is everything a DocumentManager needs besides its
// connection string.
type Configuration struct {
	DocumentNamespaces map[string]string
	Proxy              ProxyConfig
	Hydrator           HydratorConfig

	MetadataCache  cache.Pool
	MetadataDriver mapping.Driver

	// DefaultDB overrides the database named in the connection string.
	DefaultDB string
}

// DocumentName expands "Alias:Short" through DocumentNamespaces.
func (c *Configuration) DocumentName(name string) (string, error) {
	return mapping.ExpandAlias(name, c.DocumentNamespaces)
}

func (c *Configuration) applyDefaults() {
	if c.MetadataDriver == nil {
		c.MetadataDriver = &mapping.Chain{}
	}
}
