package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// NewBehaviorsCmd lists the behavior ids that have a profile.
func NewBehaviorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "behaviors",
		Short: "List known behaviors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			backend, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			ids, err := backend.Behaviors(ctx)
			if err != nil {
				return err
			}
			return PrintResult(cmd, listView{header: "BEHAVIOR", items: ids})
		},
	}
}

// NewRegionsCmd lists regions, or shows one region when given an argument.
func NewRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions [region]",
		Short: "List brain regions or show one region's catalog entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			backend, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				d, err := backend.RegionDetail(ctx, args[0])
				if err != nil {
					return err
				}
				return PrintResult(cmd, regionView{d: d})
			}
			regions, err := backend.Regions(ctx)
			if err != nil {
				return err
			}
			return PrintResult(cmd, listView{header: "REGION", items: regions})
		},
	}
}

// NewLevelsCmd prints the risk level table. It needs no knowledge base.
func NewLevelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "Show risk levels, their score thresholds and recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return PrintResult(cmd, levelsView{levels: risk.Table()})
		},
	}
}

// NewInfoCmd reports which knowledge generation is loaded.
func NewInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the loaded knowledge version and counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			backend, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			info, err := backend.Info(ctx)
			if err != nil {
				return err
			}
			return PrintResult(cmd, infoView{info: info})
		},
	}
}

// NewReloadCmd asks a running server to reload its knowledge base.
func NewReloadCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Reload the knowledge base of a running server (requires --server)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.ServerAddr == "" {
				return errors.InvalidParam("reload needs --server; a local knowledge base is read fresh on every command")
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			backend, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			r, ok := backend.(interface {
				ReloadKnowledge(ctx context.Context, reason string) (assessment.KnowledgeInfo, error)
			})
			if !ok {
				return errors.InvalidParam("backend cannot reload")
			}
			info, err := r.ReloadKnowledge(ctx, reason)
			if err != nil {
				return err
			}
			return PrintResult(cmd, infoView{info: info})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "cli", "reason recorded with the reload")
	return cmd
}
