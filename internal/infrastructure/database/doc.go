// Package database provides SQLite persistence for the Shark bridge.
//
// The bridge keeps a small local store: device bindings (the association
// between a cloud device and its host-side feature identifiers) and the
// settings table (credentials, tokens, last-written feature values survive
// restarts). SQLite is a good fit because the store is tiny, single-writer,
// and must be durable without external services.
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// # Migrations
//
// Schema migrations are embedded via the migrations package (see
// migrations/embed.go) and applied on startup with Migrate(). Each
// migration runs in its own transaction.
//
// # Thread Safety
//
// The pool is limited to a single connection; database/sql serialises
// access, so the wrapper is safe for concurrent use.
package database
