// Package cli implements the neurorisk command line. Commands run against a
// locally loaded knowledge base, or against a running server when --server is
// given.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/config"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatTable = "table"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	KnowledgeDir string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
	ServerAddr   string
	Token        string
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
	ServerAddr   string
	// Token is sent as a bearer token to the server.
	Token string

	backendOnce sync.Once
	backend     Backend
	backendErr  error
	newBackend  func(ctx context.Context) (Backend, error)
}

// Backend returns the local or remote backend, creating it on first use.
func (c *CLIContext) Backend(ctx context.Context) (Backend, error) {
	c.backendOnce.Do(func() {
		c.backend, c.backendErr = c.newBackend(ctx)
	})
	return c.backend, c.backendErr
}

// NewRootCommand creates the root command with all global flags and
// subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "neurorisk",
		Short: "NeuroRisk CLI: estimate brain-region impact and risk of behaviors",
		Long: "neurorisk maps measured behaviors onto weighted brain regions, scores the\n" +
			"aggregate impact and reports a risk level with affected functions, associated\n" +
			"conditions and recommendations.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./neurorisk.yaml)")
	pf.StringVarP(&opts.KnowledgeDir, "knowledge-dir", "k", "", "directory holding behavior_profiles.json and brain_regions.json")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", FormatText, "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "global operation timeout")
	pf.StringVar(&opts.Token, "token", "", "bearer token for admin calls to --server (default: server.admin_token)")
	pf.StringVar(&opts.ServerAddr, "server", "", "API server address, e.g. http://localhost:8080 (default: evaluate locally)")

	cmd.AddCommand(
		NewAssessCmd(),
		NewBatchCmd(),
		NewBehaviorsCmd(),
		NewRegionsCmd(),
		NewLevelsCmd(),
		NewInfoCmd(),
		NewReloadCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch strings.ToLower(opts.OutputFormat) {
	case FormatText, FormatJSON, FormatTable:
	default:
		return errors.InvalidParam(fmt.Sprintf("unknown output format %q; expected text|json|table", opts.OutputFormat))
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	if opts.KnowledgeDir != "" {
		cfg.Knowledge.Source = config.SourceFile
		cfg.Knowledge.Dir = opts.KnowledgeDir
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       initLogger(cmd, opts),
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Verbose:      opts.Verbose,
		Timeout:      opts.Timeout,
		ServerAddr:   opts.ServerAddr,
		Token:        opts.Token,
	}
	if cliCtx.Token == "" {
		cliCtx.Token = cfg.Server.AdminToken
	}
	cliCtx.newBackend = func(ctx context.Context) (Backend, error) {
		return newBackend(ctx, cliCtx)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with priority: flags > env > file > defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{"./neurorisk.yaml"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".neurorisk", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/neurorisk/config.yaml")

	for _, p := range searchPaths {
		if _, statErr := os.Stat(p); statErr == nil {
			return config.Load(p)
		}
	}
	return config.LoadFromEnv()
}

// initLogger keeps logs on stderr so stdout carries only results.
func initLogger(cmd *cobra.Command, opts *RootOptions) logging.Logger {
	level := strings.ToLower(opts.LogLevel)
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewWriterLogger(cmd.ErrOrStderr(), level, "console")
}

// GetCLIContext extracts CLIContext from a command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLIContext not found in command context")
	}
	return cliCtx, nil
}

// commandContext bounds ctx by the --timeout flag.
func commandContext(cmd *cobra.Command, cliCtx *CLIContext) (context.Context, context.CancelFunc) {
	if cliCtx.Timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), cliCtx.Timeout)
}

// Execute runs the CLI with os.Args.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// PrintResult outputs data in the format selected by --output.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return printJSON(cmd, data)
	}
	switch cliCtx.OutputFormat {
	case FormatJSON:
		return printJSON(cmd, data)
	case FormatTable:
		return printTable(cmd, data)
	default:
		return printText(cmd, data)
	}
}

// jsonProvider lets a view choose what is serialized for --output json.
type jsonProvider interface {
	JSONValue() interface{}
}

type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	if jp, ok := data.(jsonProvider); ok {
		data = jp.JSONValue()
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(cmd *cobra.Command, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprint(cmd.OutOrStdout(), v.String())
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", v)
	}
	return nil
}

// printTable falls back to text for data without a tabular form.
func printTable(cmd *cobra.Command, data interface{}) error {
	if tp, ok := data.(tableProvider); ok {
		fmt.Fprint(cmd.OutOrStdout(), RenderTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	return printText(cmd, data)
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

// RenderTable renders headers and rows as an aligned ASCII table.
func RenderTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			if i == len(headers)-1 {
				sb.WriteString(val)
			} else {
				sb.WriteString(padRight(val, colWidths[i]))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	sep := make([]string, len(colWidths))
	for i, w := range colWidths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
