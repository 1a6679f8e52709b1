package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/ai/gemini"
	"github.com/spigell/resume-ranker/internal/bulk"
	"github.com/spigell/resume-ranker/internal/lock"
	"github.com/spigell/resume-ranker/internal/logger"
	"github.com/spigell/resume-ranker/internal/normalize"
	"github.com/spigell/resume-ranker/internal/scoring"
	"github.com/spigell/resume-ranker/internal/secrets"
	"github.com/spigell/resume-ranker/internal/service"
	"github.com/spigell/resume-ranker/internal/store"
	"github.com/spigell/resume-ranker/internal/trigger"
)

// runtime holds the collaborators shared by the commands.
type runtime struct {
	cfg     *Config
	logger  *zap.Logger
	store   store.Store
	locker  lock.Locker
	matcher *bulk.Matcher
	rabbit  *trigger.RabbitMQ
	inline  *trigger.Inline
	closers []func(context.Context) error
}

func newLogger() (*zap.Logger, error) {
	return logger.New(logger.Options{
		JSON:    viper.GetBool("json"),
		Debug:   viper.GetBool("debug"),
		Service: app,
	})
}

// newRuntime connects to the store and the lock backend and builds the bulk matcher.
func newRuntime(ctx context.Context) (*runtime, error) {
	log, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}

	cfg, err := getConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: log}

	if err := rt.openStore(ctx); err != nil {
		rt.Close(ctx)
		return nil, err
	}
	if err := rt.openLocker(); err != nil {
		rt.Close(ctx)
		return nil, err
	}

	rt.matcher, err = bulk.New(rt.store, rt.locker, cfg.Matching, log.Named("bulk"))
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	log.Debug("runtime ready", zap.String("version", buildVersion()), zap.String("strategy", cfg.Matching.Strategy))
	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context) error {
	uri, err := secrets.Optional(secrets.Source{
		Name:  "mongo uri",
		File:  rt.cfg.Mongo.URIFile,
		Value: rt.cfg.Mongo.URI,
	})
	if err != nil {
		return err
	}

	if uri == "" {
		rt.logger.Warn("mongo is not configured, using the in-memory store",
			zap.String("hint", "set mongo.uri or MONGO_URI_FILE"),
		)
		rt.store = store.NewMemory()
		return nil
	}

	m, err := store.NewMongo(ctx, uri, rt.cfg.Mongo.Database, rt.logger.Named("mongo"))
	if err != nil {
		return err
	}
	if err := m.EnsureIndexes(ctx); err != nil {
		m.Close(ctx)
		return err
	}
	rt.store = m
	rt.closers = append(rt.closers, m.Close)
	return nil
}

func (rt *runtime) openLocker() error {
	if strings.TrimSpace(rt.cfg.Redis.Addr) == "" {
		rt.locker = lock.NewLocal()
		return nil
	}

	password, err := secrets.Optional(secrets.Source{
		Name:  "redis password",
		File:  rt.cfg.Redis.PasswordFile,
		Value: rt.cfg.Redis.Password,
	})
	if err != nil {
		return err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rt.cfg.Redis.Addr,
		Password: password,
		DB:       rt.cfg.Redis.DB,
	})
	rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })

	var opts []lock.RedisOption
	if rt.cfg.Redis.LockTTL > 0 {
		opts = append(opts, lock.WithTTL(rt.cfg.Redis.LockTTL))
	}
	rt.locker, err = lock.NewRedis(client, rt.logger.Named("lock"), opts...)
	return err
}

// rabbitURL returns the configured broker url or an empty string.
func (rt *runtime) rabbitURL() (string, error) {
	return secrets.Optional(secrets.Source{
		Name:  "rabbitmq url",
		File:  rt.cfg.RabbitMQ.URLFile,
		Value: rt.cfg.RabbitMQ.URL,
	})
}

// submitter publishes to RabbitMQ when configured and otherwise runs
// matching passes on background goroutines.
func (rt *runtime) submitter() (trigger.Submitter, error) {
	url, err := rt.rabbitURL()
	if err != nil {
		return nil, err
	}

	if url != "" {
		rt.rabbit, err = trigger.NewRabbitMQ(url, rt.cfg.RabbitMQ.Queue, rt.logger.Named("trigger"))
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return rt.rabbit.Close() })
		return rt.rabbit, nil
	}

	rt.inline, err = trigger.NewInline(rt.matcher.Handle, 0, rt.logger.Named("trigger"))
	if err != nil {
		return nil, err
	}
	return rt.inline, nil
}

func (rt *runtime) generator(ctx context.Context) (*gemini.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(rt.cfg.AI.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", rt.cfg.AI.Provider)
	}

	g := rt.cfg.AI.Gemini
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  g.APIKeyFile,
		Env:   "GEMINI_API_KEY",
		Value: g.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	return gemini.NewGenerator(ctx, gemini.Options{
		APIKey:         apiKey,
		Model:          g.Model,
		EmbeddingModel: g.EmbeddingModel,
		MaxRetries:     g.MaxRetries,
	}, logger.WithCommonFields(rt.logger.Named("gemini"), "gemini", g.Model))
}

// newService wires the full pipeline, including the Gemini collaborators
// and the background trigger.
func (rt *runtime) newService(ctx context.Context) (*service.Service, error) {
	generator, err := rt.generator(ctx)
	if err != nil {
		return nil, err
	}
	aiLogger := logger.WithCommonFields(rt.logger, "gemini", generator.Model())

	scorer, err := gemini.NewScorer(generator, rt.cfg.AI.Gemini.MaxLogLength, aiLogger.Named("scorer"))
	if err != nil {
		return nil, err
	}
	orchestrator, err := scoring.NewOrchestrator(rt.store, scorer, rt.cfg.Matching, rt.logger.Named("scoring"))
	if err != nil {
		return nil, err
	}

	submitter, err := rt.submitter()
	if err != nil {
		return nil, err
	}

	catalog := normalize.DefaultCatalog()
	for id, countries := range rt.cfg.Regions {
		catalog[id] = countries
	}

	return service.New(service.Deps{
		Store:     rt.store,
		Locker:    rt.locker,
		Matcher:   rt.matcher,
		Scoring:   orchestrator,
		Embedder:  generator,
		Extractor: gemini.NewExtractor(generator, aiLogger.Named("extractor")),
		Trigger:   submitter,
		Catalog:   catalog,
		Config:    rt.cfg.Matching,
		Logger:    rt.logger.Named("service"),
	})
}

// Close waits for inline background tasks and releases connections.
func (rt *runtime) Close(ctx context.Context) error {
	if rt.inline != nil {
		rt.inline.Wait()
	}

	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
	return errors.Join(errs...)
}
