package main

import (
	"fmt"

	"stepcounter/internal/adapter/memory"
	"stepcounter/internal/adapter/postgres"
	"stepcounter/internal/adapter/sqlite"
	"stepcounter/internal/config"
	"stepcounter/internal/domain"
)

type store struct {
	steps    domain.StepRepository
	users    domain.UserRepository
	sessions domain.SessionRepository
	close    func() error
}

func openStore(cfg config.Config) (store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return store{}, fmt.Errorf("db open: %w", err)
		}
		return store{steps: db, users: db, sessions: postgres.NewSessionRepo(db), close: db.Close}, nil
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return store{}, fmt.Errorf("db open: %w", err)
		}
		return store{steps: db, users: db, sessions: sqlite.NewSessionRepo(db), close: db.Close}, nil
	case config.StoreMemory:
		db := memory.New()
		return store{steps: db, users: db, sessions: db.NewSessionRepo(), close: func() error { return nil }}, nil
	default:
		return store{}, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
