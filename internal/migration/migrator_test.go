package migration

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/assetflow/config"
)

func TestParseDatabaseType(t *testing.T) {
	tests := []struct {
		in      string
		want    DatabaseType
		wantErr bool
	}{
		{"postgres", DatabaseTypePostgres, false},
		{"PostgreSQL", DatabaseTypePostgres, false},
		{"pg", DatabaseTypePostgres, false},
		{"mysql", DatabaseTypeMySQL, false},
		{"mariadb", DatabaseTypeMySQL, false},
		{"sqlite", DatabaseTypeSQLite, false},
		{" sqlite3 ", DatabaseTypeSQLite, false},
		{"oracle", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDatabaseType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildDatabaseURL(t *testing.T) {
	assert.Equal(t,
		"postgres://u:p@db:5432/assets?sslmode=require",
		BuildDatabaseURL(DatabaseTypePostgres, "db", 5432, "assets", "u", "p", "require"))
	assert.Equal(t,
		"postgres://u:p@db:5432/assets?sslmode=disable",
		BuildDatabaseURL(DatabaseTypePostgres, "db", 5432, "assets", "u", "p", ""))
	assert.Equal(t,
		"u:p@tcp(db:3306)/assets?multiStatements=true&parseTime=true",
		BuildDatabaseURL(DatabaseTypeMySQL, "db", 3306, "assets", "u", "p", ""))
	assert.Equal(t,
		"file:/var/lib/assetflow/jobs.db?mode=rwc&_foreign_keys=on",
		BuildDatabaseURL(DatabaseTypeSQLite, "", 0, "/var/lib/assetflow/jobs.db", "", "", ""))
	assert.Empty(t, BuildDatabaseURL("oracle", "", 0, "", "", "", ""))
}

func TestGetMigrationsPath(t *testing.T) {
	assert.Equal(t, "migrations/postgres", GetMigrationsPath(DatabaseTypePostgres))
	assert.Equal(t, "migrations/sqlite", GetMigrationsPath(DatabaseTypeSQLite))
}

func TestAvailableMigrations_EveryDialect(t *testing.T) {
	for _, dt := range []DatabaseType{DatabaseTypePostgres, DatabaseTypeMySQL, DatabaseTypeSQLite} {
		t.Run(string(dt), func(t *testing.T) {
			ms, err := AvailableMigrations(dt)
			require.NoError(t, err)
			require.NotEmpty(t, ms)
			assert.Equal(t, uint(1), ms[0].Version)
			assert.Equal(t, "create_plan_jobs", ms[0].Name)

			// 每个 up 都要有对应的 down
			for _, m := range ms {
				_, err := migrationsFS.ReadFile(fmt.Sprintf("%s/%06d_%s.down.sql", GetMigrationsPath(dt), m.Version, m.Name))
				assert.NoError(t, err, "missing down migration for %d", m.Version)
			}
		})
	}
}

func TestNewMigrator_InvalidConfig(t *testing.T) {
	_, err := NewMigrator(nil)
	assert.Error(t, err)

	_, err = NewMigrator(&Config{DatabaseType: DatabaseTypePostgres})
	assert.Error(t, err)

	_, err = NewMigrator(&Config{DatabaseType: "oracle", DatabaseURL: "x"})
	assert.Error(t, err)

	_, err = NewMigratorFromURL("oracle", "x")
	assert.Error(t, err)

	_, err = NewMigratorFromDatabaseConfig(config.DatabaseConfig{Driver: "sqlite"})
	assert.Error(t, err)
}

// --- CLI ---

type fakeMigrator struct {
	version uint
	dirty   bool
	calls   []string
	failUp  bool
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	if f.failUp {
		return errors.New("boom")
	}
	f.version = 1
	return nil
}
func (f *fakeMigrator) Down() error    { f.calls = append(f.calls, "down"); f.version = 0; return nil }
func (f *fakeMigrator) DownAll() error { f.calls = append(f.calls, "down-all"); f.version = 0; return nil }
func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.version = uint(int(f.version) + n)
	return nil
}
func (f *fakeMigrator) Goto(v uint) error  { f.calls = append(f.calls, "goto"); f.version = v; return nil }
func (f *fakeMigrator) Force(v int) error  { f.calls = append(f.calls, "force"); f.version = uint(v); return nil }
func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, nil }
func (f *fakeMigrator) Status() ([]MigrationStatus, error) {
	return []MigrationStatus{{Version: 1, Name: "create_plan_jobs", Applied: f.version >= 1}}, nil
}
func (f *fakeMigrator) Info() (*MigrationInfo, error) {
	applied := 0
	if f.version >= 1 {
		applied = 1
	}
	return &MigrationInfo{CurrentVersion: f.version, Dirty: f.dirty, TotalCount: 1, AppliedCount: applied, PendingCount: 1 - applied}, nil
}
func (f *fakeMigrator) Close() error { return nil }

func TestCLI_Run(t *testing.T) {
	fm := &fakeMigrator{}
	cli := NewCLI(fm)
	var buf bytes.Buffer
	cli.SetOutput(&buf)

	require.NoError(t, cli.Run("status", nil))
	assert.Contains(t, buf.String(), "create_plan_jobs")
	assert.Contains(t, buf.String(), "pending")

	buf.Reset()
	require.NoError(t, cli.Run("up", nil))
	assert.Contains(t, buf.String(), "Current version: 1")

	buf.Reset()
	require.NoError(t, cli.Run("info", nil))
	assert.Contains(t, buf.String(), "Applied: 1/1")

	require.NoError(t, cli.Run("goto", []string{"0"}))
	require.NoError(t, cli.Run("force", []string{"1"}))
	assert.Equal(t, []string{"up", "goto", "force"}, fm.calls)

	assert.Error(t, cli.Run("steps", nil))
	assert.Error(t, cli.Run("goto", []string{"-1"}))
	assert.Error(t, cli.Run("sideways", nil))
}

func TestCLI_RunVersion(t *testing.T) {
	fm := &fakeMigrator{}
	cli := NewCLI(fm)
	var buf bytes.Buffer
	cli.SetOutput(&buf)

	require.NoError(t, cli.RunVersion())
	assert.Contains(t, buf.String(), "No migrations applied yet.")

	buf.Reset()
	fm.version, fm.dirty = 1, true
	require.NoError(t, cli.RunVersion())
	assert.Equal(t, "Current version: 1 (dirty)\n", buf.String())
}

func TestCLI_UpFailure(t *testing.T) {
	cli := NewCLI(&fakeMigrator{failUp: true})
	cli.SetOutput(&bytes.Buffer{})
	err := cli.RunUp()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
