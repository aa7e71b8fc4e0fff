package mapping

import (
	"github.com/juju/errors"
	"github.com/juju/schema"
	"github.com/spf13/afero"

	"github.com/km-arc/go-persistence/framework/cache"
	"github.com/km-arc/go-persistence/framework/factory"
	"github.com/km-arc/go-persistence/framework/tree"
)

// Descriptor is one entry of metadataDrivers.drivers after defaults have
// been applied.
type Descriptor struct {
	Adapter          string
	MappingNamespace string
	MappingDirs      []string
	ReaderCacheName  string
	ReaderNamespaces map[string]string

	// Filled in by the caller before the driver is built.
	ReaderCache cache.Pool
	Registry    *Registry
	Fs          afero.Fs
}

var descriptorFields = schema.Fields{
	"adapter":          schema.String(),
	"mappingNamespace": schema.String(),
	"mappingDirs":      schema.List(schema.String()),
	"readerCache":      schema.String(),
	"readerNamespaces": schema.StringMap(schema.String()),
}

var descriptorDefaults = schema.Defaults{
	"adapter":          "yaml",
	"mappingNamespace": "",
	"mappingDirs":      []interface{}{},
	"readerCache":      "",
	"readerNamespaces": map[string]interface{}{},
}

var descriptorChecker = schema.FieldMap(descriptorFields, descriptorDefaults)

// ParseDescriptor validates a descriptor mapping.
func ParseDescriptor(n tree.Node) (Descriptor, error) {
	if !n.IsMap() {
		return Descriptor{}, errors.NotValidf("metadata driver descriptor of kind %s", n.Kind())
	}
	v, err := descriptorChecker.Coerce(n.Interface(), nil)
	if err != nil {
		return Descriptor{}, errors.NewNotValid(err, "metadata driver descriptor")
	}
	m := v.(map[string]interface{})
	d := Descriptor{
		Adapter:          m["adapter"].(string),
		MappingNamespace: m["mappingNamespace"].(string),
		ReaderCacheName:  m["readerCache"].(string),
		ReaderNamespaces: make(map[string]string),
	}
	for _, dir := range m["mappingDirs"].([]interface{}) {
		d.MappingDirs = append(d.MappingDirs, dir.(string))
	}
	for alias, ns := range m["readerNamespaces"].(map[string]interface{}) {
		d.ReaderNamespaces[alias] = ns.(string)
	}
	return d, nil
}

// DriverFactory builds a metadata driver from a descriptor.
type DriverFactory func(d Descriptor) (Driver, error)

// NewDrivers returns an empty metadata driver table.
func NewDrivers() *factory.Registry[DriverFactory] {
	return factory.New[DriverFactory]("metadata driver")
}

// RegisterBuiltins adds "yaml" and "static"; "annotation" is kept as a name
// for "static".
func RegisterBuiltins(drivers *factory.Registry[DriverFactory]) {
	drivers.Register("yaml", NewYAMLDriverFrom)
	drivers.Register("static", NewStaticDriverFrom)
	drivers.Register("annotation", NewStaticDriverFrom)
}

func NewYAMLDriverFrom(d Descriptor) (Driver, error) {
	if len(d.MappingDirs) == 0 {
		return nil, errors.NotValidf("yaml metadata driver without mappingDirs")
	}
	return NewYAMLDriver(d.Fs, d.MappingDirs, d.ReaderNamespaces, d.ReaderCache), nil
}

// NewStaticDriverFrom serves the descriptor's registry. Its mappingDirs are
// registered as include paths of mappingNamespace.
func NewStaticDriverFrom(d Descriptor) (Driver, error) {
	if d.Registry == nil {
		return nil, errors.NotValidf("static metadata driver without registry")
	}
	for _, dir := range d.MappingDirs {
		d.Registry.RegisterNamespace(d.MappingNamespace, dir)
	}
	return NewStaticDriver(d.Registry), nil
}
