package main

import (
	"fmt"
	"os"

	authclient "github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app is the per-invocation state shared by subcommands.
type app struct {
	cfg     *cliConfig
	client  *authclient.Client
	cleanup []func()
}

// newRootCmd returns the command tree and a func releasing whatever the
// invoked command opened. The release func must run even when the command
// fails.
func newRootCmd() (*cobra.Command, func()) {
	a := &app{}

	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Log in to a token backend and call authenticated endpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ./config.yaml or $HOME/.authctl/config.yaml)")
	flags.String("base-url", "", "backend base URL")
	flags.String("session-file", "", "file holding the persisted session")
	flags.String("redis-addr", "", "persist the session in Redis at this address instead of a file")
	flags.Bool("redis-embedded", false, "persist the session in an in-process Redis (lost on exit)")
	flags.String("session-id", "", "session key suffix when persisting to Redis")
	flags.Duration("timeout", 0, "HTTP timeout")
	flags.Int("expires-in-mins", 0, "requested token lifetime sent with login and refresh")
	flags.BoolP("verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		newLoginCmd(a),
		newWhoamiCmd(a),
		newGetCmd(a),
		newRefreshCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
	)
	return root, a.close
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if cfg.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	persister, err := a.persister()
	if err != nil {
		return err
	}

	clientCfg := authclient.DefaultConfig()
	clientCfg.HTTP.BaseURL = cfg.BaseURL
	clientCfg.HTTP.Timeout = cfg.Timeout
	clientCfg.HTTP.UserAgent = "authctl"
	clientCfg.Refresh.ExpiresInMins = cfg.ExpiresInMins

	client, err := authclient.New().
		WithConfig(clientCfg).
		WithPersister(persister).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}
	a.client = client
	a.cleanup = append(a.cleanup, client.Close)

	if err := client.Restore(cmd.Context()); err != nil {
		logger.WithError(err).Warn("could not restore session; continuing without one")
	}
	return nil
}

func (a *app) persister() (session.Persister, error) {
	switch {
	case a.cfg.RedisEmbedded:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		a.cleanup = append(a.cleanup, mr.Close)
		return a.redisPersister(mr.Addr()), nil
	case a.cfg.RedisAddr != "":
		return a.redisPersister(a.cfg.RedisAddr), nil
	default:
		return session.NewFilePersister(a.cfg.SessionFile), nil
	}
}

func (a *app) redisPersister(addr string) session.Persister {
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	a.cleanup = append(a.cleanup, func() { _ = rdb.Close() })
	defaults := authclient.DefaultConfig().Session
	return session.NewRedisPersister(rdb, defaults.RedisPrefix, a.cfg.SessionID, defaults.PersistTTL)
}

// close runs cleanups in reverse registration order.
func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}
