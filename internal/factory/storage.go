// Package factory selects the docstore adapter from configuration.
package factory

import (
	"fmt"

	"github.com/famgate/famgate/internal/config"
	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/docstore/memstore"
	"github.com/famgate/famgate/internal/docstore/pgstore"
	"github.com/famgate/famgate/internal/docstore/reststore"
	"github.com/famgate/famgate/internal/docstore/sqlitestore"
)

// NewStore builds the docstore named by cfg.StoreDriver. restOpts apply only
// to the rest driver.
func NewStore(cfg *config.Config, restOpts ...reststore.Option) (docstore.Store, error) {
	switch cfg.StoreDriver {
	case "rest":
		opts := make([]reststore.Option, 0, len(restOpts)+1)
		if cfg.APIKey != "" {
			opts = append(opts, reststore.WithAPIKey(cfg.APIKey))
		}
		opts = append(opts, restOpts...)
		return reststore.New(cfg.BackendURL, 0, opts...), nil
	case "memory":
		return memstore.New(), nil
	case "sqlite":
		return sqlitestore.Open(cfg.SQLitePath)
	case "postgres":
		return pgstore.Open(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER: %s", cfg.StoreDriver)
	}
}
