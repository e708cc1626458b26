// Package database provides the SQLite store behind the tankbot audit trail.
//
// Open creates the file and its directory on demand, enables WAL mode and a
// busy timeout, and caps the pool at one connection. Migrate applies the
// numbered SQL files from an fs.FS (normally migrations.FS) in order, each
// in its own transaction, recording progress in schema_migrations.
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
