// Package database provides the SQLite store backing the gateway's
// "sqlite" configuration source.
//
// The store holds relay and preset documents imported with
// `relaygw import`. It is opened with WAL mode and a busy timeout so the
// import command can write while a running gateway reads.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are files named YYYYMMDD_HHMMSS_description.up.sql. Each is
// applied once, in version order, inside its own transaction, and recorded
// in schema_migrations.
package database
