// Command disjunctl runs a disjoint.Container's background sweep loop
// standalone, for manual exercise of the collector outside of a test
// binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"github.com/zephyrtronium/disjoint"
)

func main() {
	var (
		period        time.Duration
		maxConcurrent int
		strategy      []string
		configPath    string
	)
	pflag.DurationVar(&period, "period", 5*time.Second, "background sweep period")
	pflag.IntVar(&maxConcurrent, "max-concurrent", 4, "max concurrent disjunction collections per sweep")
	pflag.StringSliceVar(&strategy, "strategy", []string{"timed"}, "collection strategy: manual, timed, allocfail")
	pflag.StringVar(&configPath, "config", "", "YAML strategy config file; overrides the other flags when set")
	pflag.Parse()

	cfg := disjoint.StrategyConfig{
		Strategy:      strategy,
		Period:        period,
		MaxConcurrent: maxConcurrent,
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "disjunctl:", err)
			os.Exit(1)
		}
		cfg, err = disjoint.LoadStrategyConfig(data)
		if err != nil {
			fmt.Fprintln(os.Stderr, "disjunctl:", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := disjoint.NewContainer()
	h := c.CreateNewDisjunction()
	c.SetCurrent(h)

	fmt.Fprintf(os.Stderr, "disjunctl: running with period=%s max_concurrent=%d strategy=%v\n", cfg.Period, cfg.MaxConcurrent, cfg.Strategy)
	if err := c.RunBackground(ctx, cfg, nil); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "disjunctl:", err)
		os.Exit(1)
	}
}
