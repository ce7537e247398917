package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/lessonstream/internal/cache"
	"github.com/abhisek/lessonstream/internal/config"
	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/grading"
	"github.com/abhisek/lessonstream/internal/llm"
	"github.com/abhisek/lessonstream/internal/logger"
	"github.com/abhisek/lessonstream/internal/observability"
	"github.com/abhisek/lessonstream/internal/session"
	"github.com/abhisek/lessonstream/internal/store"
)

// runtime bundles everything a command needs to run a lesson. Store and
// Cache are nil when disabled.
type runtime struct {
	Config     *config.Config
	Log        *logger.Logger
	Store      *store.Store
	Cache      *cache.Cache
	Provider   llm.StreamProvider
	Curriculum *curriculum.Decoder
	Grader     *grading.Service

	closers []func(context.Context) error
}

// setupOpts controls which optional pieces setup builds.
type setupOpts struct {
	// Quiet swaps the logger for a no-op one, for the terminal UI.
	Quiet bool
	// NoStore skips the audit database.
	NoStore bool
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Store.Path = p
	}
	return cfg, nil
}

// setup loads the configuration and wires the provider chain, the decoder
// and the grading service.
func setup(cmd *cobra.Command, opts setupOpts) (*runtime, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rt := &runtime{Config: cfg, Log: logger.Nop()}
	if !opts.Quiet {
		if rt.Log, err = logger.New(cfg.Log.Mode, cfg.Log.Level); err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error {
			rt.Log.Sync()
			return nil
		})
	}

	fail := func(err error) (*runtime, error) {
		rt.Close(context.Background())
		return nil, err
	}

	var repo store.EventRepo
	if !cfg.Store.Disabled && !opts.NoStore {
		st, err := openStore(cfg)
		if err != nil {
			return fail(err)
		}
		rt.Store = st
		rt.closers = append(rt.closers, func(context.Context) error { return st.Close() })
		repo = st.EventRepo()
	}

	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL, cfg.Cache.Prefix)
		if err != nil {
			return fail(fmt.Errorf("connect cache: %w", err))
		}
		rt.Cache = c
		rt.closers = append(rt.closers, func(context.Context) error { return c.Close() })
	}

	shutdown, err := observability.InitOTel(ctx, rt.Log, observability.OtelConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fail(fmt.Errorf("init tracing: %w", err))
	}
	rt.closers = append(rt.closers, shutdown)

	rt.Provider, err = llm.NewProvider(ctx, cfg.LLM, repo, rt.Log)
	if err != nil {
		return fail(fmt.Errorf("LLM provider: %w", err))
	}
	rt.Curriculum = curriculum.NewDecoder(rt.Provider, cfg.CurriculumDecoder(), rt.Log)
	rt.Grader = grading.NewService(rt.Provider, cfg.GradingService(), rt.Log)
	if rt.Cache != nil {
		rt.Grader = rt.Grader.WithCache(rt.Cache)
	}
	return rt, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		path = p
	} else if err := store.EnsureDir(path); err != nil {
		return nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

// SessionDeps returns the collaborators for a new session controller.
func (rt *runtime) SessionDeps() session.Deps {
	deps := session.Deps{
		Curriculum: rt.Curriculum,
		Grader:     rt.Grader,
		Log:        rt.Log,
	}
	if rt.Store != nil {
		deps.Events = rt.Store.EventRepo()
	}
	return deps
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// openEvents opens the audit store for the read-only inspection commands.
func openEvents(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openStore(cfg)
}
