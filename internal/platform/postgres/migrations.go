package postgres

import "embed"

// MigrationsFS embeds the goose SQL migrations for the tables this
// service owns. The questionnaire catalog tables (questionnaires,
// questions, processors, mappings, responses) belong to the platform
// and are consumed read-only, so they are not migrated here.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// MigrationsDir is the path of the migration files inside MigrationsFS.
const MigrationsDir = "migrations"
