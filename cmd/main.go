package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/kovalyov-valentin/feed-sync/internal/config"
)

func main() {
	//Graceful Shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app := &cli.App{
		Name:  "feed-sync",
		Usage: "Synchronizes syndicated feeds into a post store and fans posts out to subscribers",
		Description: `Settings are read from ./config.hcl and ./config.local.hcl,
and can be overridden with FSYNC_* environment variables, e.g.:

database_dsn => FSYNC_DATABASE_DSN
sync_interval => FSYNC_SYNC_INTERVAL`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to an HCL config file instead of the default ones",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return setupLogging(cfg)
		},
		Commands: []*cli.Command{
			serveCmd(),
			syncCmd(),
			migrateCmd(),
			discoverCmd(),
			feedsCmd(),
			userCmd(),
			subscribeCmd(),
			inboxCmd(),
			markCmd(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.WithError(err).Fatal("feed-sync failed")
	}
}

// Конфиг по умолчанию читаем один раз через config.Get.
// Если передали --config, читаем только этот файл
func loadConfig(c *cli.Context) (config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}

	return config.Get(), nil
}

func setupLogging(cfg config.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	return nil
}
