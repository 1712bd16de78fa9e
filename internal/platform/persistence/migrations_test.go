package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Only input validation is covered here; applying real migrations needs a
// running database.
func TestRunMigrations_InputValidation(t *testing.T) {
	t.Run("EmptyMigrationsPath", func(t *testing.T) {
		err := RunMigrations("postgres://localhost/stackbudget", "")
		assert.EqualError(t, err, "migrations path cannot be empty")
	})

	t.Run("EmptyDatabaseURL", func(t *testing.T) {
		err := RunMigrations("", "./migrations/postgres")
		assert.EqualError(t, err, "database URL cannot be empty")
	})
}
