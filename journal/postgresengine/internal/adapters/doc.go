// Package adapters abstracts the concrete Postgres driver behind a small
// execution interface so the journal works identically with pgxpool.Pool,
// sqlx.DB, and database/sql connections.
package adapters
