package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/BaSui01/assetflow/config"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// DatabaseType 数据库方言
type DatabaseType string

const (
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeMySQL    DatabaseType = "mysql"
	DatabaseTypeSQLite   DatabaseType = "sqlite"
)

// DefaultTableName 版本表名
const DefaultTableName = "schema_migrations"

// MigrationStatus 单个迁移文件的状态
type MigrationStatus struct {
	Version uint
	Name    string
	Applied bool
}

// MigrationInfo 当前数据库的迁移摘要
type MigrationInfo struct {
	CurrentVersion uint
	Dirty          bool
	TotalCount     int
	AppliedCount   int
	PendingCount   int
}

// Config 迁移器配置
type Config struct {
	DatabaseType DatabaseType
	DatabaseURL  string
	TableName    string
	LockTimeout  time.Duration
}

// Migrator 迁移操作集合
type Migrator interface {
	Up() error
	Down() error
	DownAll() error
	Steps(n int) error
	Goto(version uint) error
	Force(version int) error
	Version() (version uint, dirty bool, err error)
	Status() ([]MigrationStatus, error)
	Info() (*MigrationInfo, error)
	Close() error
}

// DefaultMigrator 基于 golang-migrate 的实现
type DefaultMigrator struct {
	cfg     Config
	db      *sql.DB
	migrate *migrate.Migrate
}

// NewMigrator 打开数据库并加载内嵌迁移
func NewMigrator(cfg *Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, errors.New("migration config is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required")
	}
	c := *cfg
	if c.TableName == "" {
		c.TableName = DefaultTableName
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = 15 * time.Second
	}

	driverName, err := sqlDriverName(c.DatabaseType)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	dbDriver, err := databaseDriver(db, c)
	if err != nil {
		db.Close()
		return nil, err
	}

	src, err := iofs.New(migrationsFS, GetMigrationsPath(c.DatabaseType))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(c.DatabaseType), dbDriver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.LockTimeout = c.LockTimeout

	return &DefaultMigrator{cfg: c, db: db, migrate: m}, nil
}

func sqlDriverName(t DatabaseType) (string, error) {
	switch t {
	case DatabaseTypePostgres:
		return "postgres", nil
	case DatabaseTypeMySQL:
		return "mysql", nil
	case DatabaseTypeSQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", t)
	}
}

func databaseDriver(db *sql.DB, c Config) (database.Driver, error) {
	var (
		drv database.Driver
		err error
	)
	switch c.DatabaseType {
	case DatabaseTypePostgres:
		drv, err = postgres.WithInstance(db, &postgres.Config{MigrationsTable: c.TableName})
	case DatabaseTypeMySQL:
		drv, err = mysql.WithInstance(db, &mysql.Config{MigrationsTable: c.TableName})
	case DatabaseTypeSQLite:
		drv, err = sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: c.TableName})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s migration driver: %w", c.DatabaseType, err)
	}
	return drv, nil
}

// ignoreNoChange 把 ErrNoChange 视为成功
func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// Up 应用全部未执行的迁移
func (m *DefaultMigrator) Up() error {
	if err := ignoreNoChange(m.migrate.Up()); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down 回滚一个版本
func (m *DefaultMigrator) Down() error {
	if err := ignoreNoChange(m.migrate.Steps(-1)); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// DownAll 回滚全部迁移
func (m *DefaultMigrator) DownAll() error {
	if err := ignoreNoChange(m.migrate.Down()); err != nil {
		return fmt.Errorf("migrate down all: %w", err)
	}
	return nil
}

// Steps 正数前进、负数回滚
func (m *DefaultMigrator) Steps(n int) error {
	if err := ignoreNoChange(m.migrate.Steps(n)); err != nil {
		return fmt.Errorf("migrate steps %d: %w", n, err)
	}
	return nil
}

// Goto 迁移到指定版本
func (m *DefaultMigrator) Goto(version uint) error {
	if err := ignoreNoChange(m.migrate.Migrate(version)); err != nil {
		return fmt.Errorf("migrate to %d: %w", version, err)
	}
	return nil
}

// Force 强制设置版本号，用于修复 dirty 状态
func (m *DefaultMigrator) Force(version int) error {
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Version 当前版本；尚未迁移时返回 0
func (m *DefaultMigrator) Version() (uint, bool, error) {
	v, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Status 列出每个内嵌迁移的执行状态
func (m *DefaultMigrator) Status() ([]MigrationStatus, error) {
	current, _, err := m.Version()
	if err != nil {
		return nil, err
	}
	available, err := AvailableMigrations(m.cfg.DatabaseType)
	if err != nil {
		return nil, err
	}
	for i := range available {
		available[i].Applied = current > 0 && available[i].Version <= current
	}
	return available, nil
}

// Info 汇总迁移状态
func (m *DefaultMigrator) Info() (*MigrationInfo, error) {
	current, dirty, err := m.Version()
	if err != nil {
		return nil, err
	}
	statuses, err := m.Status()
	if err != nil {
		return nil, err
	}
	info := &MigrationInfo{CurrentVersion: current, Dirty: dirty, TotalCount: len(statuses)}
	for _, s := range statuses {
		if s.Applied {
			info.AppliedCount++
		}
	}
	info.PendingCount = info.TotalCount - info.AppliedCount
	return info, nil
}

// Close 释放 migrate 实例和数据库连接
func (m *DefaultMigrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr, m.db.Close())
}

// AvailableMigrations 读取内嵌的 up 迁移，按版本排序
func AvailableMigrations(dbType DatabaseType) ([]MigrationStatus, error) {
	dir := GetMigrationsPath(dbType)
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations for %s: %w", dbType, err)
	}

	var out []MigrationStatus
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, MigrationStatus{
			Version: uint(v),
			Name:    strings.TrimSuffix(rest, ".up.sql"),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// ParseDatabaseType 解析数据库类型，接受常见别名
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return DatabaseTypePostgres, nil
	case "mysql", "mariadb":
		return DatabaseTypeMySQL, nil
	case "sqlite", "sqlite3":
		return DatabaseTypeSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database type: %q", s)
	}
}

// BuildDatabaseURL 按方言拼接迁移用的连接 URL
func BuildDatabaseURL(dbType DatabaseType, host string, port int, name, user, password, sslMode string) string {
	switch dbType {
	case DatabaseTypePostgres:
		if sslMode == "" {
			sslMode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(user, password),
			Host:     fmt.Sprintf("%s:%d", host, port),
			Path:     "/" + name,
			RawQuery: "sslmode=" + url.QueryEscape(sslMode),
		}
		return u.String()
	case DatabaseTypeMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?multiStatements=true&parseTime=true", user, password, host, port, name)
	case DatabaseTypeSQLite:
		return fmt.Sprintf("file:%s?mode=rwc&_foreign_keys=on", name)
	default:
		return ""
	}
}

// GetMigrationsPath 内嵌文件系统中的方言目录
func GetMigrationsPath(dbType DatabaseType) string {
	return path.Join("migrations", string(dbType))
}

// NewMigratorFromDatabaseConfig 从应用数据库配置创建迁移器
func NewMigratorFromDatabaseConfig(dbCfg config.DatabaseConfig) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, err
	}
	var dbURL string
	switch dbType {
	case DatabaseTypeSQLite:
		if dbCfg.Name == "" {
			return nil, errors.New("sqlite migrations need a database file path in database.name")
		}
		dbURL = BuildDatabaseURL(dbType, "", 0, dbCfg.Name, "", "", "")
	default:
		dbURL = BuildDatabaseURL(dbType, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.User, dbCfg.Password, dbCfg.SSLMode)
	}
	return NewMigrator(&Config{DatabaseType: dbType, DatabaseURL: dbURL})
}

// NewMigratorFromURL 直接使用连接 URL 创建迁移器
func NewMigratorFromURL(dbType, dbURL string) (*DefaultMigrator, error) {
	dt, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, err
	}
	return NewMigrator(&Config{DatabaseType: dt, DatabaseURL: dbURL})
}
