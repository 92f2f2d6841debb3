// Package postgresengine provides a Postgres-backed delivery journal that
// implements the simulation.Sender interface. Every delivered event
// descriptor is appended as one journal row, giving dashboards and audits
// a durable record of what the simulator sent and when.
//
// The journal supports three database access layers through the same
// adapter abstraction: pgxpool.Pool, sqlx.DB, and database/sql.
package postgresengine
