package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-brain/internal/agent"
	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-brain/internal/brain"
	"github.com/rocketscienceinc/tictactoe-brain/internal/config"
	"github.com/rocketscienceinc/tictactoe-brain/internal/entity"
	"github.com/rocketscienceinc/tictactoe-brain/internal/metrics"
	"github.com/rocketscienceinc/tictactoe-brain/internal/policy"
	"github.com/rocketscienceinc/tictactoe-brain/internal/repository"
	"github.com/rocketscienceinc/tictactoe-brain/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-brain/internal/selfplay"
	"github.com/rocketscienceinc/tictactoe-brain/internal/session"
	"github.com/rocketscienceinc/tictactoe-brain/transport/rest"
)

// brain names used as redis keys.
const (
	brainX = "x"
	brainO = "o"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// tables holds the credit tables of both marks and knows how to save them.
type tables struct {
	stores       map[entity.Mark]*brain.Store
	checkpointer selfplay.Checkpointer
}

// RunTraining plays conf.Training.Epochs self-play matches, or epochs when it
// is positive, and saves both tables. SIGINT stops after the current match.
func RunTraining(logger *slog.Logger, conf *config.Config, epochs int) error {
	log := logger.With("component", "app")

	ctx, cancel := signalContext(log)
	defer cancel()

	if epochs <= 0 {
		epochs = conf.Training.Epochs
	}

	client, closeClient, err := connectRedis(ctx, conf, conf.Brain.Storage == config.StorageRedis)
	if err != nil {
		return err
	}
	defer closeClient(log)

	brains, err := openTables(ctx, log, conf, client)
	if err != nil {
		return err
	}

	reg := newRegistry()
	m := metrics.New(reg)

	agentOptions := []agent.Option{agent.WithFalloff(conf.Brain.Falloff)}
	x := agent.New(entity.X, brains.stores[entity.X], agentOptions...)
	o := agent.New(entity.O, brains.stores[entity.O], agentOptions...)

	trainer, err := selfplay.New(logger, x, o,
		policy.NewExploratory(conf.Brain.Epsilon, nil),
		policy.NewExploratory(conf.Brain.Epsilon, nil),
		trainerOptions(conf, brains, m)...,
	)
	if err != nil {
		return fmt.Errorf("failed to create trainer: %w", err)
	}

	// progress is scraped from /metrics while training runs
	server := rest.New(logger, conf.HTTPPort, rest.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	g, gCtx := errgroup.WithContext(serverCtx)
	g.Go(func() error {
		return server.Start(gCtx)
	})

	log.Info("Starting training", "epochs", epochs, "storage", conf.Brain.Storage)

	summary, err := trainer.Run(ctx, epochs)
	stopServer()

	if waitErr := g.Wait(); waitErr != nil {
		log.Error("metrics server error", "error", waitErr)
	}

	if errors.Is(err, context.Canceled) {
		log.Info("Training interrupted", "played", summary.Played)
		return nil
	}
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	return nil
}

// RunServer serves interactive sessions against a bot until SIGINT or SIGTERM.
func RunServer(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := signalContext(log)
	defer cancel()

	needRedis := conf.SessionStore == config.StorageRedis || conf.Brain.Storage == config.StorageRedis
	client, closeClient, err := connectRedis(ctx, conf, needRedis)
	if err != nil {
		return err
	}
	defer closeClient(log)

	reg := newRegistry()
	m := metrics.New(reg)

	options := []session.Option{session.WithMetrics(m)}

	var brains *tables
	if conf.Bot.Mark != "none" {
		if brains, err = openTables(ctx, log, conf, client); err != nil {
			return err
		}

		var mark entity.Mark
		if err = mark.UnmarshalText([]byte(conf.Bot.Mark)); err != nil {
			return fmt.Errorf("failed to parse bot mark: %w", err)
		}

		options = append(options, session.WithBot(
			brains.stores[mark], mark, policy.NewGreedy(nil), rewardsFrom(conf), conf.Bot.Learn,
		))
	}

	var games repository.GameRepository
	if conf.SessionStore == config.StorageRedis {
		games = repository.NewGameRepository(client)
	} else {
		games = repository.NewMemoryGameRepository()
	}

	sessions := session.New(logger, games, options...)
	serverOptions := []rest.Option{
		rest.WithSessions(sessions),
		rest.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	}
	server := rest.New(logger, conf.HTTPPort, serverOptions...)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gCtx)
	})

	// a learning bot keeps what it learned across restarts
	if brains != nil && conf.Bot.Learn {
		g.Go(func() error {
			<-gCtx.Done()
			if cpErr := brains.checkpointer.Checkpoint(context.WithoutCancel(gCtx)); cpErr != nil {
				return fmt.Errorf("failed to save learned tables: %w", cpErr)
			}
			log.Info("Learned tables saved")
			return nil
		})
	}

	if err = g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

// RunMigrate converts the X and O tables from the nested JSON layout and saves
// them through the configured brain storage, replacing what is stored there.
func RunMigrate(logger *slog.Logger, conf *config.Config, nestedX, nestedO string) error {
	log := logger.With("component", "app")
	ctx := context.Background()

	client, closeClient, err := connectRedis(ctx, conf, conf.Brain.Storage == config.StorageRedis)
	if err != nil {
		return err
	}
	defer closeClient(log)

	brains, err := importTables(conf, client, nestedX, nestedO)
	if err != nil {
		return err
	}

	if err = brains.checkpointer.Checkpoint(ctx); err != nil {
		return fmt.Errorf("failed to save imported tables: %w", err)
	}

	log.Info("Tables migrated",
		"storage", conf.Brain.Storage,
		"x_nodes", brains.stores[entity.X].Len(),
		"o_nodes", brains.stores[entity.O].Len())

	return nil
}

func signalContext(log *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()

	return ctx, cancel
}

// connectRedis returns a nil client when redis is not needed.
func connectRedis(ctx context.Context, conf *config.Config, needed bool) (*redis.Client, func(*slog.Logger), error) {
	if !needed {
		return nil, func(*slog.Logger) {}, nil
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if conf.Redis.Host == "" {
		return nil, nil, ErrAddrNotFound
	}

	client, err := storage.NewRedis(ctx, redisAddrString)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	return client, func(log *slog.Logger) {
		if err := client.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}, nil
}

// trainerOptions turns periodic checkpoints off when conf.Training.CheckpointEvery
// is 0. The final save after the last match always happens.
func trainerOptions(conf *config.Config, brains *tables, m *metrics.Metrics) []selfplay.Option {
	return []selfplay.Option{
		selfplay.WithRewards(rewardsFrom(conf)),
		selfplay.WithCheckpoint(conf.Training.CheckpointEvery, brains.checkpointer),
		selfplay.WithMetrics(m),
	}
}

// openTables loads both credit tables from the configured storage.
func openTables(ctx context.Context, log *slog.Logger, conf *config.Config, client *redis.Client) (*tables, error) {
	switch conf.Brain.Storage {
	case config.StorageFile:
		return openFileTables(log, conf)
	case config.StorageRedis:
		return openRedisTables(ctx, log, conf, repository.NewBrainRepository(client))
	default:
		return nil, fmt.Errorf("%w: brain storage %q", apperror.ErrUnsupportedStorage, conf.Brain.Storage)
	}
}

func openFileTables(log *slog.Logger, conf *config.Config) (*tables, error) {
	load := func(path string) (*brain.Store, error) {
		if conf.Brain.Fresh {
			return brain.New(), nil
		}

		store, found, err := brain.LoadOrNew(path, !conf.Brain.RequireStored)
		if err != nil {
			return nil, err
		}
		if !found {
			log.Warn("table not found, starting empty", "path", path)
		}
		return store, nil
	}

	x, err := load(conf.Brain.FileX)
	if err != nil {
		return nil, fmt.Errorf("failed to load X table: %w", err)
	}

	o, err := load(conf.Brain.FileO)
	if err != nil {
		return nil, fmt.Errorf("failed to load O table: %w", err)
	}

	return fileTables(conf, x, o), nil
}

func fileTables(conf *config.Config, x, o *brain.Store) *tables {
	return &tables{
		stores:       map[entity.Mark]*brain.Store{entity.X: x, entity.O: o},
		checkpointer: selfplay.FileCheckpointer{conf.Brain.FileX: x, conf.Brain.FileO: o},
	}
}

func openRedisTables(ctx context.Context, log *slog.Logger, conf *config.Config, repo repository.BrainRepository) (*tables, error) {
	load := func(name string) (*brain.Store, error) {
		if conf.Brain.Fresh {
			return brain.New(), nil
		}

		store, err := repo.Load(ctx, name)
		if errors.Is(err, repository.ErrBrainNotFound) && !conf.Brain.RequireStored {
			log.Warn("table not found, starting empty", "key", name)
			return brain.New(), nil
		}
		return store, err
	}

	x, err := load(brainX)
	if err != nil {
		return nil, fmt.Errorf("failed to load X table: %w", err)
	}

	o, err := load(brainO)
	if err != nil {
		return nil, fmt.Errorf("failed to load O table: %w", err)
	}

	return redisTables(repo, x, o), nil
}

func redisTables(repo repository.BrainRepository, x, o *brain.Store) *tables {
	return &tables{
		stores:       map[entity.Mark]*brain.Store{entity.X: x, entity.O: o},
		checkpointer: selfplay.NewRedisCheckpointer(repo, map[string]*brain.Store{brainX: x, brainO: o}),
	}
}

// importTables reads both tables from files in the nested layout and binds
// them to the configured storage.
func importTables(conf *config.Config, client *redis.Client, nestedX, nestedO string) (*tables, error) {
	x, err := brain.LoadNested(nestedX)
	if err != nil {
		return nil, fmt.Errorf("failed to import X table: %w", err)
	}

	o, err := brain.LoadNested(nestedO)
	if err != nil {
		return nil, fmt.Errorf("failed to import O table: %w", err)
	}

	switch conf.Brain.Storage {
	case config.StorageFile:
		return fileTables(conf, x, o), nil
	case config.StorageRedis:
		return redisTables(repository.NewBrainRepository(client), x, o), nil
	default:
		return nil, fmt.Errorf("%w: brain storage %q", apperror.ErrUnsupportedStorage, conf.Brain.Storage)
	}
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func rewardsFrom(conf *config.Config) selfplay.Rewards {
	return selfplay.Rewards{
		Win:   conf.Rewards.Win,
		Lose:  conf.Rewards.Lose,
		Draw:  conf.Rewards.Draw,
		Block: conf.Rewards.Block,
	}
}
