// Package orm provides the entity manager: a sqlair database bound to a
// connection, plus the mapping, caching and naming configuration used to
// turn entity names into SQL.
package orm

import (
	"sort"

	"github.com/juju/errors"

	"github.com/km-arc/go-persistence/framework/cache"
	"github.com/km-arc/go-persistence/framework/mapping"
)

// FunctionKind groups custom query functions the way "dqlFunctions" does.
type FunctionKind string

const (
	NumericFunction  FunctionKind = "numeric"
	DatetimeFunction FunctionKind = "datetime"
	StringFunction   FunctionKind = "string"
)

// FunctionKinds lists the valid kinds.
var FunctionKinds = []FunctionKind{NumericFunction, DatetimeFunction, StringFunction}

// ProxyConfig holds the "proxy" section.
type ProxyConfig struct {
	AutoGenerate bool
	Namespace    string
	Dir          string
}

// Configuration is everything an EntityManager needs besides its
// connection.
type Configuration struct {
	EntityNamespaces map[string]string
	Proxy            ProxyConfig

	MetadataCache cache.Pool
	QueryCache    cache.Pool
	ResultCache   cache.Pool

	MetadataDriver    mapping.Driver
	NamingStrategy    NamingStrategy
	DefaultRepository string

	functions map[FunctionKind]map[string]string
}

// AddFunction registers a custom function: name as written in queries,
// implementation as the SQL it expands to.
func (c *Configuration) AddFunction(kind FunctionKind, name, implementation string) error {
	switch kind {
	case NumericFunction, DatetimeFunction, StringFunction:
	default:
		return errors.NotValidf("function kind %q", kind)
	}
	if c.functions == nil {
		c.functions = make(map[FunctionKind]map[string]string)
	}
	if c.functions[kind] == nil {
		c.functions[kind] = make(map[string]string)
	}
	c.functions[kind][name] = implementation
	return nil
}

// Function returns the implementation registered under kind and name.
func (c *Configuration) Function(kind FunctionKind, name string) (string, bool) {
	impl, ok := c.functions[kind][name]
	return impl, ok
}

// Functions returns the names registered under kind, sorted.
func (c *Configuration) Functions(kind FunctionKind) []string {
	names := make([]string, 0, len(c.functions[kind]))
	for name := range c.functions[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntityName expands "Alias:Short" through EntityNamespaces.
func (c *Configuration) EntityName(name string) (string, error) {
	return mapping.ExpandAlias(name, c.EntityNamespaces)
}

func (c *Configuration) applyDefaults() {
	if c.MetadataDriver == nil {
		c.MetadataDriver = &mapping.Chain{}
	}
	if c.NamingStrategy == nil {
		c.NamingStrategy = DefaultNamingStrategy{}
	}
}
