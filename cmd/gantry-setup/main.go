// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Gantry-setup bootstraps a Matrix homeserver for the bridge. It
// validates the configuration, opens and migrates the bridge database,
// checks the homeserver is reachable, and registers the bridge bot.
// With --resync it also replays every stored puppet profile to the
// homeserver. Safe to re-run: all operations are idempotent.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/gantry-foundation/gantry/lib/config"
	"github.com/gantry-foundation/gantry/lib/identity"
	"github.com/gantry-foundation/gantry/lib/version"
	"github.com/gantry-foundation/gantry/messaging"
	"github.com/gantry-foundation/gantry/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		resync      bool
		showVersion bool
	)

	flags := pflag.NewFlagSet("gantry-setup", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to gantry.yaml (defaults to $GANTRY_CONFIG)")
	flags.BoolVar(&resync, "resync", false, "replay stored puppet profiles to the homeserver")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("gantry-setup %s\n", version.Info())
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Registration and profile replays are all small requests; if setup
	// runs longer than this, something is wrong.
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	st, err := store.Open(store.Config{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("database ready", "path", cfg.Database.Path)

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Homeserver.Address,
		ASToken:       cfg.Appservice.ASToken,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	versions, err := client.ServerVersions(ctx)
	if err != nil {
		return fmt.Errorf("homeserver %s is not reachable: %w", cfg.Homeserver.Address, err)
	}
	logger.Info("homeserver reachable",
		"address", cfg.Homeserver.Address,
		"versions", versions.Versions,
	)

	appservice, err := messaging.NewAppService(client, cfg.BotUserID())
	if err != nil {
		return err
	}
	bot := appservice.Bot()
	if err := bot.EnsureRegistered(ctx); err != nil {
		return fmt.Errorf("registering bridge bot: %w", err)
	}
	if cfg.Appservice.BotDisplayName != "" {
		if err := bot.SetDisplayName(ctx, cfg.Appservice.BotDisplayName); err != nil {
			return fmt.Errorf("setting bot display name: %w", err)
		}
	}
	logger.Info("bridge bot ready", "user_id", bot.UserID())

	if resync {
		if err := resyncPuppets(ctx, cfg, st, appservice, logger); err != nil {
			return fmt.Errorf("resyncing puppets: %w", err)
		}
	}

	logger.Info("gantry setup complete")
	return nil
}

// resyncPuppets replays every persisted puppet profile to the
// homeserver: re-register the ghost, then reapply the display name and
// avatar the store says are current. Used after homeserver data loss
// or when the displayname template changed.
func resyncPuppets(ctx context.Context, cfg *config.Config, st *store.Store, appservice *messaging.AppService, logger *slog.Logger) error {
	codec, err := identity.NewCodec(cfg.Bridge.UsernameTemplate, cfg.ServerName())
	if err != nil {
		return err
	}
	formatter, err := identity.NewDisplayNameFormatter(cfg.Bridge.DisplaynameTemplate, cfg.Bridge.DisplaynameMaxLength)
	if err != nil {
		return err
	}

	puppets, err := st.Puppets(ctx)
	if err != nil {
		return err
	}
	for _, puppet := range puppets {
		userID, err := codec.UserID(puppet.RemoteID)
		if err != nil {
			// A template change can orphan old rows; flag them and
			// keep going.
			logger.Warn("puppet no longer encodes under the username template",
				"remote_id", puppet.RemoteID, "error", err)
			continue
		}
		intent := appservice.Intent(userID)
		if err := intent.EnsureRegistered(ctx); err != nil {
			return fmt.Errorf("registering %s: %w", userID, err)
		}
		if puppet.NameSet {
			if err := intent.SetDisplayName(ctx, formatter.Format(puppet.Name)); err != nil {
				return fmt.Errorf("setting display name for %s: %w", userID, err)
			}
		}
		if puppet.AvatarSet && !puppet.AvatarMXC.IsZero() {
			if err := intent.SetAvatarURL(ctx, puppet.AvatarMXC); err != nil {
				return fmt.Errorf("setting avatar for %s: %w", userID, err)
			}
		}
		logger.Info("resynced puppet", "remote_id", puppet.RemoteID, "user_id", userID)
	}
	logger.Info("resync complete", "puppets", len(puppets))
	return nil
}
