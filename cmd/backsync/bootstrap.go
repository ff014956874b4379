package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/backsync/internal/adapters/driven/bridge/github"
	"github.com/custodia-labs/backsync/internal/adapters/driven/bridge/rest"
	"github.com/custodia-labs/backsync/internal/adapters/driven/config"
	"github.com/custodia-labs/backsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/backsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/backsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/backsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
	"github.com/custodia-labs/backsync/internal/core/ports/driving"
	"github.com/custodia-labs/backsync/internal/core/services"
	"github.com/custodia-labs/backsync/internal/logger"
)

// defaultHistoryKeep is the number of fetch log entries kept per source.
const defaultHistoryKeep = 100

// bootstrap reads the configuration and builds one source per definition.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	log := logger.OrNop(opts.Logger)

	cfg, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log.Debug("config: %s", cfg.Path())

	defs, err := cfg.Sources()
	if err != nil {
		return nil, err
	}
	engine := cfg.Engine()

	var db *sqlite.Store
	if persist(cfg) {
		db, err = sqlite.NewStore(cfg.GetString(driven.KeyDataDir))
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		log.Debug("database: %s", db.Path())
	}

	manager := services.NewRequestManager(engine, log)
	sources := make([]services.Source, 0, len(defs))
	closeAll := func() error {
		var errs []error
		for _, src := range sources {
			errs = append(errs, src.Close())
		}
		if db != nil {
			errs = append(errs, db.Close())
		}
		return errors.Join(errs...)
	}

	for _, def := range defs {
		records := recordStore(db, def.Name)
		src, err := openSource(ctx, def, engine, tokenSource(cfg, def), records, manager, log.With("source", def.Name))
		if err != nil {
			_ = records.Close()
			_ = closeAll()
			return nil, err
		}
		sources = append(sources, src)
	}

	syncSvc := services.NewSyncService(log, sources...)
	keep := cfg.GetInt(driven.KeyHistoryKeep)
	if keep == 0 {
		keep = defaultHistoryKeep
	}
	if db != nil {
		syncSvc.SetFetchLog(db.FetchLog(), keep)
	} else {
		syncSvc.SetFetchLog(memory.NewFetchLogStore(), keep)
	}

	return &cli.Services{
		Sync:   syncSvc,
		Source: services.NewSourceService(cfg),
		NewScheduler: func(interval time.Duration, onReport func(*driving.FetchReport, error), targets ...driving.FetchTarget) driving.Scheduler {
			s := services.NewScheduler(interval, syncSvc, log, targets...)
			s.OnReport = onReport
			return s
		},
		WatchConfig: cfg.Watch,
		Close: func() error {
			manager.CancelAll()
			return closeAll()
		},
	}, nil
}

// persist reports whether storage.persist is set, defaulting to true.
func persist(cfg driven.ConfigStore) bool {
	if _, ok := cfg.Get(driven.KeyPersist); !ok {
		return true
	}
	return cfg.GetBool(driven.KeyPersist)
}

// tokenSource reads the token from the live configuration so reloads rotate
// it. Sources configured without a token stay anonymous.
func tokenSource(cfg driven.ConfigStore, def domain.Source) oauth2.TokenSource {
	if def.Token == "" {
		return nil
	}
	return config.TokenSource(cfg, def.Name)
}

func recordStore(db *sqlite.Store, source string) driven.RecordStore {
	if db == nil {
		return memory.NewRecordStore()
	}
	return db.Records(source)
}

// openSource loads the local graph of def and binds it to its bridge.
func openSource(
	ctx context.Context,
	def domain.Source,
	engine domain.EngineConfig,
	tokens oauth2.TokenSource,
	records driven.RecordStore,
	manager *services.RequestManager,
	log *logger.Logger,
) (services.Source, error) {
	switch def.Kind {
	case domain.SourceGitHub:
		model, err := github.Model()
		if err != nil {
			return nil, err
		}
		store, err := memory.Open(ctx, model, memory.WithPersistence(records), memory.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", def.Name, err)
		}
		var opts []github.Option
		if tokens != nil {
			opts = append(opts, github.WithTokenSource(tokens))
		}
		bridge, err := github.New(def, store, log, opts...)
		if err != nil {
			return nil, err
		}
		return services.NewBridgeSource[github.Record, any, github.Page](def.Name, store, bridge, manager, log, records.Close), nil

	default:
		model, err := def.Model()
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", def.Name, err)
		}
		store, err := memory.Open(ctx, model, memory.WithPersistence(records), memory.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", def.Name, err)
		}
		opts := []rest.Option{rest.WithUniquingAttribute(engine.UniquingAttribute)}
		if tokens != nil {
			opts = append(opts, rest.WithTokenSource(tokens))
		}
		bridge, err := rest.New(def, store, log, opts...)
		if err != nil {
			return nil, err
		}
		return services.NewBridgeSource[rest.Record, any, rest.PageInfo](def.Name, store, bridge, manager, log, records.Close), nil
	}
}
