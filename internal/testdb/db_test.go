package testdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTestDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GENSERVE_TEST_DB_URL", "")
	assert.True(t, ShouldSkipDatabaseTest())

	t.Setenv("GENSERVE_TEST_DB_URL", "postgres://test@localhost/fallback")
	assert.Equal(t, "postgres://test@localhost/fallback", GetTestDatabaseURL())

	t.Setenv("DATABASE_URL", "postgres://test@localhost/primary")
	assert.Equal(t, "postgres://test@localhost/primary", GetTestDatabaseURL())
	assert.False(t, ShouldSkipDatabaseTest())
}

func TestGetTestDBWithT_SkipsWithoutDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GENSERVE_TEST_DB_URL", "")

	ran := false
	t.Run("skipped", func(t *testing.T) {
		defer func() { ran = !t.Skipped() }()
		GetTestDBWithT(t)
	})

	assert.False(t, ran, "subtest should have been skipped")
}
