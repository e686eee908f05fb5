package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-relay/internal/app"
	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/log"
	"github.com/vovakirdan/wirechat-relay/internal/service/groups"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "wirechat-relay",
		Short:         "Real-time chat relay for rooms, direct messages and groups",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newUserCmd(opts),
		newGroupCmd(opts),
	)
	return cmd
}

// load resolves configuration and builds the logger the command runs with.
func (o *rootOptions) load() (config.Config, *zerolog.Logger, error) {
	bootstrap := log.New("info", "console")
	cfg, path, err := config.Load(bootstrap, o.configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config_path", path).Msg("configuration loaded")
	return cfg, logger, nil
}

// toolkit bundles the services used by the operator commands.
type toolkit struct {
	store  *sqlite.SQLiteStore
	auth   *auth.Service
	groups *groups.Service
	log    *zerolog.Logger
}

func (o *rootOptions) toolkit(ctx context.Context) (*toolkit, error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, err
	}
	st, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &toolkit{
		store:  st,
		auth:   auth.NewService(st, app.JWTConfig(&cfg)),
		groups: groups.New(st),
		log:    logger,
	}, nil
}

func (t *toolkit) Close() {
	if err := t.store.Close(); err != nil {
		t.log.Warn().Err(err).Msg("failed to close store")
	}
}
