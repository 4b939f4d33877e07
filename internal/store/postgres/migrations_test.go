package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	require.Equal(t, 1, migrations[0].version)
	require.Equal(t, "1_initial_schema.sql", migrations[0].name)
	require.Contains(t, migrations[0].content, "CREATE UNIQUE INDEX "+constraintCharacterName)
	require.Contains(t, migrations[0].content, constraintAccountUser)

	for i := 1; i < len(migrations); i++ {
		require.Less(t, migrations[i-1].version, migrations[i].version)
	}
}
