package cli

import (
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/app"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// NewServeCmd runs the service in the foreground until interrupted.
func NewServeCmd() *cobra.Command {
	var (
		role string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and/or the measurement intake worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.ServerAddr != "" {
				return errors.InvalidParam("--server cannot be combined with serve")
			}
			r, err := app.ParseRole(role)
			if err != nil {
				return errors.InvalidParam(err.Error())
			}

			cfg := cliCtx.Config
			if port != 0 {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return errors.InvalidConfiguration(err.Error())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, app.Options{Role: r, Version: Version})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "api", "components to run: api, worker or all")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides server.port)")
	return cmd
}

// VersionInfo is printed by the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("neurorisk %s\n  commit:   %s\n  built:    %s\n  go:       %s\n  platform: %s\n",
		v.Version, v.GitCommit, v.BuildDate, v.GoVersion, v.Platform)
}

func currentVersion() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// NewVersionCmd prints build information.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return PrintResult(cmd, currentVersion())
		},
	}
}
