package main

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles_SortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0755))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, files)
}

func TestMigrationFiles_RepoMigrations(t *testing.T) {
	files, err := migrationFiles("../../migrations")
	require.NoError(t, err)
	assert.Contains(t, files, "001_subscriber_index.sql")
}

func TestPending(t *testing.T) {
	files := []string{"001_a.sql", "002_b.sql", "003_c.sql"}
	assert.Equal(t, []string{"002_b.sql"}, pending(files, map[string]bool{"001_a.sql": true, "003_c.sql": true}))
	assert.Empty(t, pending(files, map[string]bool{"001_a.sql": true, "002_b.sql": true, "003_c.sql": true}))
}

func TestAppliedMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("001_subscriber_index.sql"))

	applied, err := appliedMigrations(db)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"001_subscriber_index.sql": true}, applied)
}

func TestResolveDSN(t *testing.T) {
	t.Cleanup(func() { dsnFlag, configFlag = "", "config/config.yaml" })

	dsnFlag = "postgres://flag"
	t.Setenv("DATABASE_URL", "postgres://env")
	dsn, err := resolveDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag", dsn)

	dsnFlag = ""
	dsn, err = resolveDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", dsn)

	t.Setenv("DATABASE_URL", "")
	configFlag = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = resolveDSN()
	assert.Error(t, err)
}

func TestRootCommandWiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["up"])
	assert.True(t, names["status"])
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("dsn"))
}
