// Package postgres provides PostgreSQL-backed implementations of the
// persistence interfaces in internal/store and internal/task. It owns the
// query text, the mapping between rows and domain entities, and the
// translation of driver errors into store errors.
package postgres
