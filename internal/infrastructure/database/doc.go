// Package database provides the SQLite history store for the Tuya bridge.
//
// This package manages:
//   - Database connection with WAL mode so API reads don't block poll writes
//   - Schema migrations embedded from the migrations package (additive only)
//   - The device_records table: one row per snapshot that passed the
//     governance gate
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600
//
// Usage:
//
//	import _ "github.com/nerrad567/tuya-bridge/migrations"
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql. New columns
// must be NULLABLE or carry a DEFAULT.
package database
