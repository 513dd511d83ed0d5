// Package store defines the persistence interfaces the pipeline depends
// on: the result store it owns, the read-only projections of the external
// questionnaire/processor domain, and transaction helpers. Concrete
// implementations live in internal/platform/postgres.
package store
