// Command rolewarden runs one membership-governance pass against a Discord
// guild: resolve configuration, scan members, apply the pair-resolution and
// tenure-grant rules, DM affected members, and exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/koivu/rolewarden/internal/config"
	"github.com/koivu/rolewarden/internal/discord"
	"github.com/koivu/rolewarden/internal/engine"
	"github.com/koivu/rolewarden/internal/logging"
	"github.com/koivu/rolewarden/internal/notify"
)

const envToken = "DISCORD_TOKEN"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rolewarden: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	log := logging.ConfigureRuntime()

	configPath := flag.String("config", os.Getenv("ROLEWARDEN_CONFIG"),
		"optional TOML config file; environment variables take precedence")
	flag.Parse()

	token := strings.TrimSpace(os.Getenv(envToken))
	if token == "" {
		return fmt.Errorf("missing bot token (set %s)", envToken)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	client, err := discord.New(token)
	if err != nil {
		return err
	}

	notifyOpts := notify.DefaultOptions()
	notifyOpts.DryRun = cfg.DryRun
	dsp := notify.NewDispatcher(client, notifyOpts, log)

	orch := engine.New(client, dsp, cfg, engine.DefaultOptions(), log)
	stats, err := orch.Run(context.Background())
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	log.Info().
		Int("checked", stats.Checked).
		Int("tenure_granted", stats.TenureGranted).
		Int("pair_resolved", stats.PairResolved).
		Msg("rolewarden finished")
	return nil
}
