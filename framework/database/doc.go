// Package database wraps database/sql connection pools with the pieces a
// persistence configuration can attach to them: a driver chosen by
// identifier, a per-connection type registry with database type mappings,
// an event manager for connection lifecycle hooks and an optional
// statement logger.
//
//	drivers := database.NewDrivers()
//	database.RegisterBuiltins(drivers)
//	open, _ := drivers.Lookup("sqlite3")
//	conn, err := database.Open(open, database.Config{
//	    Driver: "sqlite3",
//	    Params: tree.MustOf(map[string]any{"memory": true}),
//	})
//	err = conn.Connect(ctx) // ping, then postConnect subscribers
package database
