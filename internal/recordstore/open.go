package recordstore

import (
	"context"
	"fmt"

	"github.com/basilfx/uploader/internal/config"
)

// Open returns the store selected by cfg.Driver, with its schema or
// indexes in place. It returns a nil Store for config.DriverNone.
func Open(ctx context.Context, cfg config.Records) (Store, error) {
	switch cfg.Driver {
	case config.DriverNone, "":
		return nil, nil
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverPostgres:
		s, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return s, nil
	case config.DriverMongo:
		s, err := OpenMongo(ctx, cfg.DSN, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("create mongo indexes: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown record driver %q", cfg.Driver)
	}
}
