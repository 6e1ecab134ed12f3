// Package cli 实现 sql2mongo 命令行
package cli

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tsfans/sql2mongo/config"
)

const (
	ErrMissingInput   = "missing required option: s, sql or i"
	ErrExclusiveInput = "options s, sql and i are mutually exclusive"
)

// RootOptions 根命令的参数
type RootOptions struct {
	Source      string
	Destination string
	SQL         string
	Interactive bool
	Format      string
	ConfigPath  string
	Verbose     bool
	NoBanner    bool
}

// NewRootCommand 创建 sql2mongo 命令
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sql2mongo",
		Short: "Translate SQL SELECT statements into MongoDB queries",
		Long: `sql2mongo translates MySQL-dialect SELECT statements into MongoDB
find or aggregate queries.

Input comes from exactly one of:
  -s/--source       a file holding one or more statements separated by ';'
  --sql             a statement given on the command line
  -i/--interactive  one statement per line read from stdin

Output goes to stdout, or to -d/--destination which must not exist yet.`,
		Example: `  sql2mongo --sql "select * from user where age > 18"
  sql2mongo -s queries.sql -d queries.js
  sql2mongo -i --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Source, "source", "s", "", "read SQL from file")
	cmd.Flags().StringVarP(&opts.Destination, "destination", "d", "", "write queries to file (must not exist)")
	cmd.Flags().StringVar(&opts.SQL, "sql", "", "SQL statement to translate")
	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "read statements from stdin line by line")
	cmd.Flags().StringVar(&opts.Format, "format", config.FormatShell, "output format: shell or json")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./sql2mongo.yaml or ~/.config/sql2mongo/sql2mongo.yaml)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVar(&opts.NoBanner, "no-banner", false, "omit the banner before each query")

	return cmd
}

func runRoot(cmd *cobra.Command, opts *RootOptions) error {
	if err := checkInputs(opts); err != nil {
		return err
	}

	cfg, path, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = opts.Format
	}
	if opts.NoBanner {
		cfg.Output.Banner = false
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	setupLogging(cmd, cfg, opts.Verbose)
	if path != "" {
		log.Debugf("using config file %v", path)
	}

	banner := ""
	if cfg.Output.Banner {
		banner = config.DefaultBanner
	}
	t := NewTranslator(cfg)

	if opts.Interactive {
		if err := RunInteractive(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), t, banner); err != nil {
			return WrapExitError(ExitCommandError, "reading stdin", err)
		}
		return nil
	}

	sql := opts.SQL
	if opts.Source != "" {
		content, err := os.ReadFile(opts.Source)
		if err != nil {
			return WrapExitError(ExitCommandError, "reading source", err)
		}
		sql = string(content)
	}
	if strings.TrimSpace(sql) == "" {
		return NewExitError(ExitCommandError, "no sql to translate")
	}

	queries, err := t.TranslateAll(cmd.Context(), sql)
	if err != nil {
		return translationExitError(err)
	}

	if opts.Destination != "" {
		return writeDestination(opts.Destination, queries, banner)
	}
	qw := &QueryWriter{Writer: cmd.OutOrStdout(), Banner: banner}
	if err := qw.Write(queries); err != nil {
		return WrapExitError(ExitCommandError, "writing output", err)
	}
	return nil
}

func checkInputs(opts *RootOptions) error {
	n := 0
	for _, set := range []bool{opts.Source != "", opts.SQL != "", opts.Interactive} {
		if set {
			n++
		}
	}
	switch {
	case n == 0:
		return NewExitError(ExitCommandError, ErrMissingInput)
	case n > 1:
		return NewExitError(ExitCommandError, ErrExclusiveInput)
	}
	if opts.Destination != "" {
		if opts.Interactive {
			return NewExitError(ExitCommandError, "option d cannot be used with i")
		}
		if _, err := os.Stat(opts.Destination); err == nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("destination file already exists: %v", opts.Destination))
		}
	}
	return nil
}

// 目标文件在整批翻译成功后才创建
func writeDestination(path string, queries []string, banner string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return WrapExitError(ExitCommandError, "creating destination", err)
	}
	qw := &QueryWriter{Writer: f, Banner: banner}
	if err := qw.Write(queries); err != nil {
		f.Close()
		return WrapExitError(ExitCommandError, "writing destination", err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitCommandError, "writing destination", err)
	}
	return nil
}

func setupLogging(cmd *cobra.Command, cfg *config.Config, verbose bool) {
	log.SetOutput(cmd.ErrOrStderr())
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)
}
