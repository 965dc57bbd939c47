package cli

import (
	"context"
	"fmt"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/app"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/impact"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/source"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/client"
)

// Backend answers CLI queries. *client.Client implements it against a server;
// localBackend implements it in-process.
type Backend interface {
	Info(ctx context.Context) (assessment.KnowledgeInfo, error)
	Behaviors(ctx context.Context) ([]string, error)
	Regions(ctx context.Context) ([]string, error)
	RegionDetail(ctx context.Context, region string) (*assessment.RegionDetail, error)
	Assess(ctx context.Context, m impact.Measurement) (*assessment.Assessment, error)
	AssessBatch(ctx context.Context, ms []impact.Measurement) (*client.BatchResult, error)
}

var _ Backend = (*client.Client)(nil)

func newBackend(ctx context.Context, cliCtx *CLIContext) (Backend, error) {
	if cliCtx.ServerAddr != "" {
		opts := []client.Option{
			client.WithTimeout(cliCtx.Timeout),
			client.WithUserAgent("neurorisk-cli/" + Version),
			client.WithLogger(clientLogger{cliCtx.Logger}),
		}
		if cliCtx.Token != "" {
			opts = append(opts, client.WithAPIKey(cliCtx.Token))
		}
		c, err := client.NewClient(cliCtx.ServerAddr, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	cfg := cliCtx.Config
	src, err := app.NewKnowledgeSource(ctx, cfg, cliCtx.Logger)
	if err != nil {
		return nil, err
	}
	svc := assessment.NewService(
		assessment.WithLogger(cliCtx.Logger),
		assessment.WithBatchConcurrency(cfg.Assessment.BatchConcurrency),
		assessment.WithMaxBatchSize(cfg.Assessment.MaxBatchSize),
	)
	if err := svc.ReloadFrom(ctx, source.NewLoader(src, cliCtx.Logger)); err != nil {
		return nil, err
	}
	return &localBackend{svc: svc}, nil
}

type localBackend struct {
	svc *assessment.Service
}

func (b *localBackend) Info(context.Context) (assessment.KnowledgeInfo, error) { return b.svc.Info() }
func (b *localBackend) Behaviors(context.Context) ([]string, error)            { return b.svc.Behaviors() }
func (b *localBackend) Regions(context.Context) ([]string, error)              { return b.svc.Regions() }

func (b *localBackend) RegionDetail(_ context.Context, region string) (*assessment.RegionDetail, error) {
	return b.svc.RegionDetail(region)
}

func (b *localBackend) Assess(ctx context.Context, m impact.Measurement) (*assessment.Assessment, error) {
	return b.svc.Assess(ctx, m)
}

func (b *localBackend) AssessBatch(ctx context.Context, ms []impact.Measurement) (*client.BatchResult, error) {
	items, err := b.svc.AssessBatch(ctx, ms)
	if err != nil {
		return nil, err
	}
	res := &client.BatchResult{Items: items, Total: len(items)}
	for _, it := range items {
		if it.Error != nil {
			res.Failed++
		} else {
			res.Succeeded++
		}
	}
	return res, nil
}

// clientLogger routes SDK logging to the CLI logger.
type clientLogger struct {
	l logging.Logger
}

func (c clientLogger) Debugf(format string, args ...interface{}) { c.l.Debug(fmt.Sprintf(format, args...)) }
func (c clientLogger) Infof(format string, args ...interface{})  { c.l.Info(fmt.Sprintf(format, args...)) }
func (c clientLogger) Errorf(format string, args ...interface{}) { c.l.Error(fmt.Sprintf(format, args...)) }
