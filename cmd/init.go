package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/choroshape/internal/boundary"
	"github.com/sells-group/choroshape/internal/db"
	"github.com/sells-group/choroshape/internal/fetcher"
	"github.com/sells-group/choroshape/internal/pipeline"
	"github.com/sells-group/choroshape/internal/store"
	"github.com/sells-group/choroshape/internal/style"
)

func initFetcher() *fetcher.Router {
	timeout := time.Duration(cfg.Census.TimeoutSecs) * time.Second
	return fetcher.NewRouter(
		fetcher.HTTPOptions{Timeout: timeout, MaxRetries: 3},
		fetcher.FTPOptions{Timeout: timeout},
	)
}

// initStore opens the render history: Postgres when store.database_url is
// set, SQLite otherwise. The schema is migrated before returning.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	if cfg.Store.DatabaseURL != "" {
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	} else {
		st, err = store.NewSQLite(cfg.Store.Path)
	}
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// initPostGIS returns a boundary source when boundary.database_url is set.
// The returned close func is never nil.
func initPostGIS(ctx context.Context) (boundary.Source, func(), error) {
	if cfg.Boundary.DatabaseURL == "" {
		return nil, func() {}, nil
	}
	pool, err := db.Connect(ctx, cfg.Boundary.DatabaseURL, 4)
	if err != nil {
		return nil, func() {}, eris.Wrap(err, "init postgis")
	}
	return boundary.NewPostGISSource(pool, cfg.Boundary.Table), pool.Close, nil
}

type pipelineEnv struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
	closers  []func()
}

func (e *pipelineEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// initPipeline wires the fetcher, boundary source, presets and history
// store. withStore=false skips history.
func initPipeline(ctx context.Context, withStore bool) (*pipelineEnv, error) {
	env := &pipelineEnv{}

	presets, err := style.LoadPresets(cfg.Style.PresetsFile)
	if err != nil {
		return nil, err
	}

	src, closeSrc, err := initPostGIS(ctx)
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, closeSrc)

	if withStore {
		st, err := initStore(ctx)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Store = st
		env.closers = append(env.closers, func() { _ = st.Close() })
	}

	env.Pipeline = pipeline.New(cfg, initFetcher(), src, env.Store, presets)
	return env, nil
}
