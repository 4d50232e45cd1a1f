package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/BaSui01/assetflow/internal/migration"
)

// =============================================================================
// 🗄️ 数据库迁移命令
// =============================================================================

// migrateArgCount 需要位置参数的子命令
var migrateArgCount = map[string]int{"steps": 1, "goto": 1, "force": 1}

// runMigrate 处理 migrate 子命令: up, down, down-all, steps N, goto V, force V, version, status, info
func runMigrate(args []string, stdout io.Writer) error {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printMigrateUsage(stdout)
		if len(args) < 1 {
			return errUsage
		}
		return nil
	}

	sub := args[0]
	n := migrateArgCount[sub]
	if len(args)-1 < n {
		return fmt.Errorf("migrate %s: expected %d argument(s)", sub, n)
	}
	positional, rest := args[1:1+n], args[1+n:]

	fs := flag.NewFlagSet("migrate "+sub, flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	cli.SetOutput(stdout)
	return cli.Run(sub, positional)
}

// createMigrator 优先使用 --db-type/--db-url，否则读取配置文件中的 database 段
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database)
}

func printMigrateUsage(w io.Writer) {
	fmt.Fprintln(w, `Database Migration Commands

Usage:
  assetflow migrate <subcommand> [args] [options]

Subcommands:
  up          Apply all pending migrations
  down        Rollback the last migration
  down-all    Rollback all migrations
  steps <n>   Apply (n > 0) or rollback (n < 0) n migrations
  goto <v>    Migrate to a specific version
  force <v>   Force set migration version (use with caution)
  version     Show current migration version
  status      Show migration status
  info        Show migration summary

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  assetflow migrate up
  assetflow migrate up --config /etc/assetflow/config.yaml
  assetflow migrate status --db-type sqlite --db-url "file:jobs.db?mode=rwc"
  assetflow migrate goto 1`)
}
