package cli

import (
	"errors"
	"fmt"
	"io"

	"legato/internal/config"
	"legato/internal/database"
	"legato/internal/library"
	"legato/internal/logging"
	"legato/internal/payload"
	"legato/internal/sorted"

	"github.com/sirupsen/logrus"
)

// app is a loaded library and everything it was opened with
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	db       *database.Database
	payloads *payload.Store
	library  *library.Library

	logCloser io.Closer
}

// openApp wires logging, the database, the payload store and the library,
// then loads the library from the database.
func openApp(cfg *config.Config) (*app, error) {
	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, logCloser: logCloser}

	a.db, err = database.NewDatabase(cfg.Database.Path, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a.payloads, err = payload.NewStore(cfg.Storage.PayloadDir, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.library = library.New(a.db, a.payloads,
		library.WithLogger(logger),
		library.WithCollator(sorted.NewCollatorForLocale(cfg.Library.Locale)),
	)
	if err := a.library.LoadAll(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load library: %w", err)
	}
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}
