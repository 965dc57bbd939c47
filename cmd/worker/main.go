// Command worker consumes behavior measurements from Kafka, assesses them
// and publishes the results. Its HTTP listener only serves health checks
// and metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/app"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/config"
)

const defaultConfigPath = "configs/config.yaml"

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "health/metrics port (overrides config)")
	brokers := flag.String("brokers", "", "comma-separated Kafka brokers (overrides config)")
	group := flag.String("group", "", "consumer group id (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: using environment/default configuration: %v\n", err)
		if cfg, err = config.LoadFromEnv(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *brokers != "" {
		cfg.Kafka.Brokers = strings.Split(*brokers, ",")
	}
	if *group != "" {
		cfg.Kafka.GroupID = *group
	}
	cfg.Kafka.Enabled = true
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{Role: app.RoleWorker, Version: version})
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
	err = a.Run(ctx)
	a.Close()
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return config.Load(path)
}
