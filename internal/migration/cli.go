package migration

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
)

// CLI 迁移命令的终端输出层
type CLI struct {
	migrator Migrator
	output   io.Writer
}

// NewCLI 创建 CLI，默认输出到 stdout
func NewCLI(m Migrator) *CLI {
	return &CLI{migrator: m, output: os.Stdout}
}

// SetOutput 设置输出目标
func (c *CLI) SetOutput(w io.Writer) {
	c.output = w
}

// Run 按子命令名分发: up, down, down-all, steps N, goto V, force V, version, status, info
func (c *CLI) Run(cmd string, args []string) error {
	switch cmd {
	case "up":
		return c.RunUp()
	case "down":
		return c.RunDown()
	case "down-all":
		return c.RunDownAll()
	case "steps":
		n, err := intArg(cmd, args)
		if err != nil {
			return err
		}
		return c.RunSteps(n)
	case "goto":
		n, err := intArg(cmd, args)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("goto: version must be >= 0")
		}
		return c.RunGoto(uint(n))
	case "force":
		n, err := intArg(cmd, args)
		if err != nil {
			return err
		}
		return c.RunForce(n)
	case "version":
		return c.RunVersion()
	case "status":
		return c.RunStatus()
	case "info":
		return c.RunInfo()
	default:
		return fmt.Errorf("unknown migrate command %q", cmd)
	}
}

func intArg(cmd string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s: expected exactly one numeric argument", cmd)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", cmd, err)
	}
	return n, nil
}

// RunUp 执行全部待执行迁移
func (c *CLI) RunUp() error {
	fmt.Fprintln(c.output, "Running migrations...")
	if err := c.migrator.Up(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return c.printVersion("Migrations complete.")
}

// RunDown 回滚最近一次迁移
func (c *CLI) RunDown() error {
	fmt.Fprintln(c.output, "Rolling back last migration...")
	if err := c.migrator.Down(); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return c.printVersion("Rollback complete.")
}

// RunDownAll 回滚全部迁移
func (c *CLI) RunDownAll() error {
	fmt.Fprintln(c.output, "Rolling back all migrations...")
	if err := c.migrator.DownAll(); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	fmt.Fprintln(c.output, "All migrations rolled back.")
	return nil
}

// RunSteps 前进或回滚 n 步
func (c *CLI) RunSteps(n int) error {
	if n >= 0 {
		fmt.Fprintf(c.output, "Applying %d migration(s)...\n", n)
	} else {
		fmt.Fprintf(c.output, "Rolling back %d migration(s)...\n", -n)
	}
	if err := c.migrator.Steps(n); err != nil {
		return fmt.Errorf("migration steps failed: %w", err)
	}
	return c.printVersion("Complete.")
}

// RunGoto 迁移到指定版本
func (c *CLI) RunGoto(version uint) error {
	fmt.Fprintf(c.output, "Migrating to version %d...\n", version)
	if err := c.migrator.Goto(version); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return c.printVersion("Migration complete.")
}

// RunForce 强制设置版本
func (c *CLI) RunForce(version int) error {
	if err := c.migrator.Force(version); err != nil {
		return fmt.Errorf("force failed: %w", err)
	}
	fmt.Fprintf(c.output, "Version forced to %d\n", version)
	return nil
}

// RunVersion 打印当前版本
func (c *CLI) RunVersion() error {
	version, dirty, err := c.migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	if version == 0 {
		fmt.Fprintln(c.output, "No migrations applied yet.")
		return nil
	}
	fmt.Fprintf(c.output, "Current version: %d", version)
	if dirty {
		fmt.Fprint(c.output, " (dirty)")
	}
	fmt.Fprintln(c.output)
	return nil
}

// RunStatus 以表格列出全部迁移
func (c *CLI) RunStatus() error {
	statuses, err := c.migrator.Status()
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.output, "No migrations found.")
		return nil
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	for _, s := range statuses {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, state)
	}
	return w.Flush()
}

// RunInfo 打印迁移摘要
func (c *CLI) RunInfo() error {
	info, err := c.migrator.Info()
	if err != nil {
		return fmt.Errorf("failed to get info: %w", err)
	}
	fmt.Fprintf(c.output, "Current version: %d\n", info.CurrentVersion)
	fmt.Fprintf(c.output, "Dirty: %t\n", info.Dirty)
	fmt.Fprintf(c.output, "Applied: %d/%d\n", info.AppliedCount, info.TotalCount)
	fmt.Fprintf(c.output, "Pending: %d\n", info.PendingCount)
	return nil
}

func (c *CLI) printVersion(prefix string) error {
	version, dirty, err := c.migrator.Version()
	if err != nil {
		return err
	}
	suffix := ""
	if dirty {
		suffix = " (dirty)"
	}
	fmt.Fprintf(c.output, "%s Current version: %d%s\n", prefix, version, suffix)
	return nil
}
