package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/hopperbot/internal/auth"
	"github.com/ibeckermayer/hopperbot/internal/config"
	"github.com/ibeckermayer/hopperbot/internal/logging"
	"github.com/ibeckermayer/hopperbot/internal/pipeline"
	"github.com/ibeckermayer/hopperbot/internal/renderer"
	"github.com/ibeckermayer/hopperbot/internal/scheduler"
	"github.com/ibeckermayer/hopperbot/internal/store"
	"github.com/ibeckermayer/hopperbot/internal/thread"
	"github.com/ibeckermayer/hopperbot/internal/tumblr"
	"github.com/ibeckermayer/hopperbot/internal/twitter"
	"github.com/ibeckermayer/hopperbot/internal/update"
	"github.com/ibeckermayer/hopperbot/internal/youtube"
)

// App holds the long-lived components of the bot.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	twitter   *twitter.Client
	tumblr    *tumblr.Client
	renderer  *renderer.Renderer
	queue     *pipeline.Queue
	renderDir string
	dumpDir   string
}

// New opens the store and creates the API clients. Nothing touches the
// network until Run.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	renderDir, err := cfg.RenderDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve render dir: %w", err)
	}

	var dumpDir string
	if cfg.Pipeline.DumpFailures {
		if dumpDir, err = config.CacheDir(); err != nil {
			return nil, fmt.Errorf("failed to resolve cache dir: %w", err)
		}
	}

	cookiePath, err := auth.DefaultCookieStorePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get cookie store path: %w", err)
	}

	st, err := store.New(dbPath)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		twitter:   twitter.New(cfg.Twitter, logging.Component(logger, "twitter")),
		tumblr:    tumblr.New(cfg.Tumblr, logging.Component(logger, "tumblr")),
		renderer:  renderer.New(cfg.Renderer, renderDir, auth.NewCookieStore(cookiePath), logging.Component(logger, "renderer")),
		queue:     pipeline.NewQueue(),
		renderDir: renderDir,
		dumpDir:   dumpDir,
	}, nil
}

// Run relays updates until ctx is cancelled or a listener fails for good.
// On the way out the listeners stop first, then the publisher finishes the
// update it is working on.
func (a *App) Run(ctx context.Context) error {
	dir, err := a.store.LoadDirectory(ctx)
	if err != nil {
		return fmt.Errorf("failed to load people directory: %w", err)
	}
	routes := a.cfg.Routes()
	a.logger.Info("loaded configuration",
		"people", dir.Len(),
		"twitter_users", len(routes.TwitterUsernames()),
		"youtube_channels", len(routes.YoutubeChannels()),
	)

	publisher := pipeline.NewPublisher(
		a.queue,
		thread.NewResolver(a.twitter, a.store, logging.Component(a.logger, "resolver")),
		a.renderer,
		update.NewBuilder(routes, dir, logging.Component(a.logger, "builder")),
		a.tumblr,
		a.store,
		pipeline.PublisherConfig{
			UpdateTimeout: a.cfg.Pipeline.UpdateTimeout.Duration,
			DumpDir:       a.dumpDir,
		},
		logging.Component(a.logger, "publisher"),
	)

	sched, err := a.newScheduler(publisher)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.runTwitter(gctx, routes)
	})

	if a.cfg.Youtube.Enabled {
		a.startYoutube(gctx, g, routes)
	}

	g.Go(func() error {
		return publisher.Run(gctx)
	})

	g.Go(func() error {
		return sched.Run(gctx)
	})

	// Listeners only enqueue, so once they are told to stop nothing new arrives.
	g.Go(func() error {
		<-gctx.Done()
		a.queue.Close()
		return nil
	})

	err = g.Wait()
	stats := publisher.Stats()
	a.logger.Info("relay stopped", "published", stats.Published, "failed", stats.Failed, "dropped", stats.Pending)
	return err
}

func (a *App) runTwitter(ctx context.Context, routes *config.Routes) error {
	usernames := routes.TwitterUsernames()
	if len(usernames) == 0 {
		a.logger.Warn("no twitter users configured, stream not started")
		return nil
	}

	ids, err := a.twitter.SyncFilters(ctx, usernames, a.cfg.Twitter.RuleTag)
	if err != nil {
		// Rules from a previous run may still be in place.
		a.logger.Error("failed to sync stream rules", "error", err)
	} else {
		a.logger.Info("stream rules synced", "rules", len(ids), "users", len(usernames))
	}

	listener := pipeline.NewTwitterListener(a.queue, logging.Component(a.logger, "listener"))
	err = a.twitter.Stream(ctx, listener.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) startYoutube(ctx context.Context, g *errgroup.Group, routes *config.Routes) {
	logger := logging.Component(a.logger, "youtube")
	channels := routes.YoutubeChannels()
	handler := youtube.NewHandler(a.queue, channels, logger)
	server := youtube.NewServer(a.cfg.Youtube.ListenAddr, handler, logger)

	g.Go(func() error {
		return server.ListenAndServe(ctx)
	})

	if a.cfg.Youtube.CallbackURL == "" {
		logger.Warn("youtube.callback_url not set, not subscribing to channels")
		return
	}
	sub := &youtube.Subscriber{HubURL: a.cfg.Youtube.HubURL, CallbackURL: a.cfg.Youtube.CallbackURL}
	g.Go(func() error {
		for _, id := range channels {
			if err := sub.Subscribe(ctx, youtube.TopicURL(id)); err != nil {
				logger.Error("failed to subscribe to channel", "channel_id", id, "error", err)
				continue
			}
			logger.Info("subscription requested", "channel_id", id)
		}
		return nil
	})
}

func (a *App) newScheduler(publisher *pipeline.Publisher) (*scheduler.Scheduler, error) {
	logger := logging.Component(a.logger, "scheduler")
	sched, err := scheduler.New(a.cfg.Schedule.Timezone, logger)
	if err != nil {
		return nil, err
	}

	if a.cfg.Schedule.Sweep != "" {
		err := sched.AddJob("sweep", a.cfg.Schedule.Sweep, func(context.Context) error {
			_, err := renderer.SweepStale(a.renderDir, a.cfg.Renderer.ArtifactMaxAge.Duration, logger)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	if a.cfg.Schedule.Stats != "" {
		err := sched.AddJob("stats", a.cfg.Schedule.Stats, func(ctx context.Context) error {
			indexed, err := a.store.CountThreadEntries(ctx)
			if err != nil {
				return err
			}
			stats := publisher.Stats()
			logger.Info("relay stats",
				"published", stats.Published,
				"failed", stats.Failed,
				"pending", stats.Pending,
				"indexed", indexed,
			)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return sched, nil
}

// Close releases the browser and the database, in that order.
func (a *App) Close() error {
	return errors.Join(a.renderer.Close(), a.store.Close())
}
