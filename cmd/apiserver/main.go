// Command apiserver serves the NeuroRisk HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/app"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/config"
)

const defaultConfigPath = "configs/config.yaml"

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	withWorker := flag.Bool("with-worker", false, "also consume measurements from Kafka in this process")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: using environment/default configuration: %v\n", err)
		if cfg, err = config.LoadFromEnv(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}

	role := app.RoleAPI
	if *withWorker {
		role = app.RoleAll
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, role); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, role app.Role) error {
	a, err := app.New(ctx, cfg, app.Options{Role: role, Version: version})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// loadConfig loads path, failing when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return config.Load(path)
}
