package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/kovalyov-valentin/feed-sync/internal/config"
	"github.com/kovalyov-valentin/feed-sync/internal/discovery"
	"github.com/kovalyov-valentin/feed-sync/internal/fetcher"
	"github.com/kovalyov-valentin/feed-sync/internal/metrics"
	"github.com/kovalyov-valentin/feed-sync/internal/model"
	"github.com/kovalyov-valentin/feed-sync/internal/scheduler"
	"github.com/kovalyov-valentin/feed-sync/internal/server"
	"github.com/kovalyov-valentin/feed-sync/internal/source"
	"github.com/kovalyov-valentin/feed-sync/internal/storage"
)

// Общие зависимости команд: конфиг, подключение к БД и парсер
type deps struct {
	cfg    config.Config
	db     *sqlx.DB
	parser source.Parser
}

func newDeps(c *cli.Context) (*deps, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	// Миграции идемпотентны, поэтому гоняем их перед каждой командой
	if err := storage.Migrate(cfg.DatabaseDriver, cfg.DatabaseDSN); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	db, err := storage.Connect(c.Context, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	parser, err := source.New(cfg.Parser, &http.Client{}, cfg.UserAgent)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &deps{cfg: cfg, db: db, parser: parser}, nil
}

func (d *deps) newFetcher() *fetcher.Fetcher {
	return fetcher.NewFetcher(
		storage.NewPostStorage(d.db),
		storage.NewFeedStorage(d.db),
		d.parser,
		fetcher.Config{
			Workers:        d.cfg.Workers,
			FetchTimeout:   d.cfg.FetchTimeout,
			FilterKeywords: d.cfg.FilterKeywords,
		},
	)
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run scheduled sync passes and the ops HTTP server",
		Action: func(c *cli.Context) error {
			d, err := newDeps(c)
			if err != nil {
				return err
			}
			defer d.db.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			sched := scheduler.New(d.newFetcher(), d.cfg.SyncInterval, metrics.New(reg))
			if err := sched.Start(c.Context); err != nil {
				return err
			}
			defer sched.Stop()

			err = server.New(sched, d.db, reg).Run(c.Context, d.cfg.HTTPAddr)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			log.Info("shutting down")
			return nil
		},
	}
}

func syncCmd() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run exactly one sync pass and exit",
		Action: func(c *cli.Context) error {
			d, err := newDeps(c)
			if err != nil {
				return err
			}
			defer d.db.Close()

			sched := scheduler.New(d.newFetcher(), d.cfg.SyncInterval, nil)
			report, err := sched.RunNow(c.Context)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FEED\tSTATUS\tINGESTED\tSKIPPED\tREAD STATES\tERROR")
			for _, f := range report.Feeds {
				errText := ""
				if f.Err != nil {
					errText = fmt.Sprintf("%s: %v", f.Failure, f.Err)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
					f.FeedName, f.Status, f.Ingested, f.Skipped(), f.ReadStates, errText)
			}

			return w.Flush()
		},
	}
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			if err := storage.Migrate(cfg.DatabaseDriver, cfg.DatabaseDSN); err != nil {
				return err
			}

			log.WithField("driver", cfg.DatabaseDriver).Info("database is up to date")
			return nil
		},
	}
}

func discoverCmd() *cli.Command {
	return &cli.Command{
		Name:      "discover",
		Usage:     "Add a feed by its address",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "frequency",
				Usage: "publication frequency: everyday, everyweek or everymonth",
				Value: string(model.Monthly),
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("discover expects exactly one url", 2)
			}

			d, err := newDeps(c)
			if err != nil {
				return err
			}
			defer d.db.Close()

			feed, created, err := discovery.New(storage.NewFeedStorage(d.db), d.parser).
				Discover(c.Context, c.Args().First(), model.Frequency(c.String("frequency")))
			if err != nil {
				return err
			}

			if created {
				fmt.Printf("Feed added with ID %d: %s\n", feed.ID, feed.Name)
			} else {
				fmt.Printf("Feed already exists with ID %d: %s\n", feed.ID, feed.Name)
			}

			return nil
		},
	}
}

func feedsCmd() *cli.Command {
	return &cli.Command{
		Name:  "feeds",
		Usage: "List feeds with their keywords",
		Action: func(c *cli.Context) error {
			d, err := newDeps(c)
			if err != nil {
				return err
			}
			defer d.db.Close()

			feedStorage := storage.NewFeedStorage(d.db)
			feeds, err := feedStorage.Feeds(c.Context)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tURL\tKEYWORDS")
			for _, feed := range feeds {
				keywords, err := feedStorage.Keywords(c.Context, feed.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", feed.ID, feed.Name, feed.URL, len(keywords))
			}

			return w.Flush()
		},
	}
}

func userCmd() *cli.Command {
	return &cli.Command{
		Name:      "user",
		Usage:     "Create a user",
		ArgsUsage: "<username>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("user expects exactly one username", 2)
			}

			d, err := newDeps(c)
			if err != nil {
				return err
			}
			defer d.db.Close()

			id, err := storage.NewUserStorage(d.db).AddUser(c.Context, c.Args().First())
			if err != nil {
				return err
			}

			fmt.Printf("User created with ID %d\n", id)
			return nil
		},
	}
}

func subscribeCmd() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe a user to a feed",
		ArgsUsage: "<user-id> <feed-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "remove",
				Usage: "unsubscribe instead",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("subscribe expects a user id and a feed id", 2)
			}

			userID, err := strconv.ParseInt(c.Args().Get(0), 10, 64)
			if err != nil {
				return fmt.Errorf("bad user id: %w", err)
			}
			feedID, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
			if err != nil {
				return fmt.Errorf("bad feed id: %w", err)
			}

			d, err := newDeps(c)
			if err != nil {
				return err
			}
			defer d.db.Close()

			subs := storage.NewSubscriptionStorage(d.db)
			if c.Bool("remove") {
				return subs.Unsubscribe(c.Context, userID, feedID)
			}

			created, err := subs.Subscribe(c.Context, userID, feedID)
			if err != nil {
				return err
			}
			if !created {
				fmt.Println("Already subscribed")
			}

			return nil
		},
	}
}

func inboxCmd() *cli.Command {
	return &cli.Command{
		Name:      "inbox",
		Usage:     "Show read states of a user, newest posts first",
		ArgsUsage: "<user-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "state",
				Usage: "only show posts in this state: unread, read, readlater or favorite",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("inbox expects a user id", 2)
			}

			userID, err := strconv.ParseInt(c.Args().First(), 10, 64)
			if err != nil {
				return fmt.Errorf("bad user id: %w", err)
			}

			d, err := newDeps(c)
			if err != nil {
				return err
			}
			defer d.db.Close()

			states, err := storage.NewReadStateStorage(d.db).ReadStates(c.Context, userID, model.State(c.String("state")))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "POST\tSTATE\tUPDATED")
			for _, rs := range states {
				fmt.Fprintf(w, "%d\t%s\t%s\n", rs.PostID, rs.State, rs.UpdatedAt.Format(time.RFC3339))
			}

			return w.Flush()
		},
	}
}

func markCmd() *cli.Command {
	return &cli.Command{
		Name:      "mark",
		Usage:     "Change the read state of a post for a user",
		ArgsUsage: "<user-id> <post-id> <state>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return cli.Exit("mark expects a user id, a post id and a state", 2)
			}

			userID, err := strconv.ParseInt(c.Args().Get(0), 10, 64)
			if err != nil {
				return fmt.Errorf("bad user id: %w", err)
			}
			postID, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
			if err != nil {
				return fmt.Errorf("bad post id: %w", err)
			}

			d, err := newDeps(c)
			if err != nil {
				return err
			}
			defer d.db.Close()

			return storage.NewReadStateStorage(d.db).SetState(c.Context, userID, postID, model.State(c.Args().Get(2)))
		},
	}
}
