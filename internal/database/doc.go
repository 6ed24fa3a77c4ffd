// Package database opens the PostgreSQL pool used by the sync journal.
package database
