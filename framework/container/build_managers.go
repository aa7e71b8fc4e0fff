package container

import (
	"context"

	"github.com/juju/errors"

	"github.com/km-arc/go-persistence/framework/mapping"
	"github.com/km-arc/go-persistence/framework/odm"
	"github.com/km-arc/go-persistence/framework/orm"
	"github.com/km-arc/go-persistence/framework/tree"
)

// buildEntityManager creates an entity manager on the record's connection,
// resolving its caches and metadata drivers along the way.
func (c *Container) buildEntityManager(ctx context.Context, record tree.Node, r Resolver) (any, error) {
	create, err := c.factories.EntityManagers.Lookup(record.StringOr("adapter", "default"))
	if err != nil {
		return nil, errors.Trace(err)
	}
	conn, err := ResolveConnection(ctx, r, record.StringOr("connection", ""))
	if err != nil {
		return nil, err
	}

	cfg := &orm.Configuration{DefaultRepository: record.StringOr("defaultRepository", "")}
	if cfg.EntityNamespaces, err = record.Get("entityNamespaces").StringMap(); err != nil {
		return nil, errors.NewNotValid(err, "entityNamespaces")
	}
	proxy := record.Get("proxy")
	cfg.Proxy = orm.ProxyConfig{
		AutoGenerate: autoGenerate(proxy.Get("autoGenerateClasses")),
		Namespace:    proxy.StringOr("namespace", ""),
		Dir:          proxy.StringOr("dir", ""),
	}

	pools := newCaches(r)
	if cfg.QueryCache, err = pools.get(ctx, record.StringOr("queryCache", "")); err != nil {
		return nil, err
	}
	if cfg.ResultCache, err = pools.get(ctx, record.StringOr("resultCache", "")); err != nil {
		return nil, err
	}
	if cfg.MetadataCache, err = pools.get(ctx, record.StringOr("metadataCache", "")); err != nil {
		return nil, err
	}
	if cfg.MetadataDriver, err = c.metadataDriver(ctx, record.Get("metadataDrivers"), pools); err != nil {
		return nil, err
	}

	newStrategy, err := c.factories.NamingStrategies.Lookup(record.StringOr("namingStrategy", "default"))
	if err != nil {
		return nil, errors.Trace(err)
	}
	cfg.NamingStrategy = newStrategy()

	functions := record.Get("dqlFunctions")
	for _, kind := range orm.FunctionKinds {
		m, err := functions.Get(string(kind)).StringMap()
		if err != nil {
			return nil, errors.NewNotValid(err, "dqlFunctions."+string(kind))
		}
		for name, impl := range m {
			if err := cfg.AddFunction(kind, name, impl); err != nil {
				return nil, errors.Trace(err)
			}
		}
	}

	em, err := create(conn, cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return em, nil
}

// buildDocumentManager creates a document manager from the record's
// connection string. "environment", when set, names the default database
// and wins over "defaultDb".
func (c *Container) buildDocumentManager(ctx context.Context, record tree.Node, r Resolver) (any, error) {
	create, err := c.factories.DocumentManagers.Lookup(record.StringOr("adapter", "default"))
	if err != nil {
		return nil, errors.Trace(err)
	}

	cfg := &odm.Configuration{DefaultDB: record.StringOr("defaultDb", "")}
	if env := record.StringOr("environment", ""); env != "" {
		cfg.DefaultDB = env
	}
	if cfg.DocumentNamespaces, err = record.Get("documentNamespaces").StringMap(); err != nil {
		return nil, errors.NewNotValid(err, "documentNamespaces")
	}
	proxy, hydrator := record.Get("proxy"), record.Get("hydrator")
	cfg.Proxy = odm.ProxyConfig{
		AutoGenerate: autoGenerate(proxy.Get("autoGenerateClasses")),
		Namespace:    proxy.StringOr("namespace", ""),
		Dir:          proxy.StringOr("dir", ""),
	}
	cfg.Hydrator = odm.HydratorConfig{
		Namespace: hydrator.StringOr("namespace", ""),
		Dir:       hydrator.StringOr("dir", ""),
	}

	pools := newCaches(r)
	if cfg.MetadataCache, err = pools.get(ctx, record.StringOr("metadataCache", "")); err != nil {
		return nil, err
	}
	if cfg.MetadataDriver, err = c.metadataDriver(ctx, record.Get("metadataDrivers"), pools); err != nil {
		return nil, err
	}

	dm, err := create(record.StringOr("connectionString", ""), cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return dm, nil
}

// metadataDriver builds the driver chain of a metadataDrivers section:
//
//	annotationRegistry:
//	  annotationFiles:      [mappings/shared.yml]
//	  annotationNamespaces: [{namespace: app.entity, includePath: mappings/entity}]
//	drivers:
//	  - {adapter: yaml, mappingNamespace: app.entity, mappingDirs: [mappings]}
//
// Files and namespaces go into the container's metadata registry. Drivers
// may also be given as a mapping, taken in key order. A single driver is
// returned as it is rather than wrapped in a chain.
func (c *Container) metadataDriver(ctx context.Context, section tree.Node, pools *caches) (mapping.Driver, error) {
	chain := &mapping.Chain{}
	if section.IsNull() {
		return chain, nil
	}
	if !section.IsMap() {
		return nil, errors.NotValidf("metadataDrivers of kind %s", section.Kind())
	}

	annotations := section.Get("annotationRegistry")
	files, err := annotations.Get("annotationFiles").Strings()
	if err != nil {
		return nil, errors.NewNotValid(err, "annotationFiles")
	}
	for _, file := range files {
		if err := c.metadata.RegisterFile(file); err != nil {
			return nil, errors.Annotatef(err, "annotation file %q", file)
		}
	}
	namespaces := annotations.Get("annotationNamespaces")
	if !namespaces.IsNull() && !namespaces.IsSeq() {
		return nil, errors.NotValidf("annotationNamespaces of kind %s", namespaces.Kind())
	}
	for _, entry := range namespaces.Items() {
		ns := entry.StringOr("namespace", "")
		if ns == "" {
			return nil, errors.NotValidf("annotation namespace without name")
		}
		c.metadata.RegisterNamespace(ns, entry.StringOr("includePath", ""))
	}

	drivers := section.Get("drivers")
	var entries []tree.Node
	switch {
	case drivers.IsSeq():
		entries = drivers.Items()
	case drivers.IsMap():
		for _, key := range drivers.Keys() {
			entries = append(entries, drivers.Get(key))
		}
	case !drivers.IsNull():
		return nil, errors.NotValidf("metadata drivers of kind %s", drivers.Kind())
	}

	template := metadataDriverTemplate(c.registries[CacheCategory].defaultInstanceName())
	for i, entry := range entries {
		desc, err := mapping.ParseDescriptor(tree.Merge(template, entry))
		if err != nil {
			return nil, errors.Annotatef(err, "metadata driver %d", i)
		}
		if desc.ReaderCache, err = pools.get(ctx, desc.ReaderCacheName); err != nil {
			return nil, err
		}
		desc.Registry = c.metadata
		desc.Fs = c.fs
		newDriver, err := c.factories.MetadataDrivers.Lookup(desc.Adapter)
		if err != nil {
			return nil, errors.Trace(err)
		}
		d, err := newDriver(desc)
		if err != nil {
			return nil, errors.Annotatef(err, "metadata driver %d", i)
		}
		chain.Add(d, desc.MappingNamespace)
	}
	return mapping.Collapse(chain), nil
}
