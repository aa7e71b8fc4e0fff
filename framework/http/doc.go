// Package http exposes a read-mostly JSON view of a persistence container.
//
//	GET  /container                    every category with its names
//	GET  /container/{category}         one category
//	POST /container/{category}/{name}  build (or fetch) one instance
//	POST /container/reset              drop built instances and reload
//
// Categories are addressed by section key (dbal, cache, orm, odm) or by
// collection key (connections, instances, entityManagers, documentManagers).
package http
