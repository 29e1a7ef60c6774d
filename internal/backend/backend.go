// Package backend opens the todo.Store named by the configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"todosync/internal/appwrite"
	"todosync/internal/config"
	"todosync/internal/mongostore"
	"todosync/internal/storage"
	"todosync/internal/todo"
)

func Open(ctx context.Context, cfg config.Config, logger *log.Logger) (todo.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.BackendAppwrite:
		c, err := appwrite.New(appwrite.Options{
			Endpoint:     cfg.Appwrite.Endpoint,
			Project:      cfg.Appwrite.Project,
			APIKey:       cfg.Appwrite.APIKey,
			DatabaseID:   cfg.DatabaseID,
			CollectionID: cfg.CollectionID,
			Timeout:      cfg.Timeout(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendMongo:
		s, err := mongostore.Open(ctx, mongostore.Options{
			URI:          cfg.Mongo.URI,
			DatabaseID:   cfg.DatabaseID,
			CollectionID: cfg.CollectionID,
			Timeout:      cfg.Timeout(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendSQLite:
		s, err := storage.Open(cfg.SQLite.Path, cfg.DatabaseID, cfg.CollectionID)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}
