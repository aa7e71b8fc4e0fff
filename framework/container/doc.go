// Package container turns a declarative configuration tree into lazily
// built, named singleton services: database connections, cache instances,
// entity managers and document managers.
//
// # Configuration
//
// The root tree has one section per category:
//
//	dbal:
//	  defaultConnection: main
//	  connections:
//	    main:    {parameters: {driver: sqlite3, path: app.db}}
//	    reports: {parameters: {driver: pgsql, host: db, dbname: reports}}
//	cache:
//	  instances:
//	    default:  {adapter: array}
//	    sessions: {adapter: filesystem, directory: /var/cache/app}
//	orm:
//	  connection: main
//	  queryCache: sessions
//	odm:
//	  connectionString: mongodb://localhost/app
//
// A section without its collection key ("connections", "instances",
// "entityManagers", "documentManagers") describes a single instance stored
// under the default name. Every record is the category's defaults with the
// configured values merged over them; see tree.Merge.
//
// # Lifecycle
//
//  1. Create: c, err := container.New(cfg, container.WithProviders(providers.Defaults()...))
//  2. Look up: conn, err := c.Connection(ctx, "reports")
//  3. Reset or Close when done
//
// Nothing is built until it is looked up. A build that references another
// instance (an entity manager's connection and caches) looks that up too, so
// a misspelled reference surfaces as a NameNotFoundError for the referenced
// category. A failed build keeps its record and is retried on the next
// lookup; concurrent first lookups of one name share a single build.
//
// # Service Providers
//
// Adapters, drivers and manager kinds are plain identifier tables filled in
// by providers:
//
//	type RedisProvider struct{ container.BaseProvider }
//
//	func (p *RedisProvider) Register(f *container.Factories) {
//	    cache.Register(f.Caches, "redis", openRedisPool)
//	}
package container
