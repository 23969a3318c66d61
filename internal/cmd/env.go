package cmd

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/937bb/937cms-sub001/internal/config"
	"github.com/937bb/937cms-sub001/internal/logging"
	"github.com/937bb/937cms-sub001/pkg/database"
)

// env is what every database command starts from.
type env struct {
	cfg *config.Config
	log *logrus.Entry
	db  *sql.DB
}

func (o *rootOptions) load() (*config.Config, *logrus.Entry, error) {
	path := o.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, logging.NewLogger("vodsync", cfg.Log.Level, cfg.Log.Format), nil
}

func (o *rootOptions) open() (*env, error) {
	cfg, log, err := o.load()
	if err != nil {
		return nil, err
	}

	dbCfg := cfg.Database.Database()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dbCfg.Dialect, err)
	}
	log.WithFields(logrus.Fields{
		"driver": dbCfg.Dialect,
		"dsn":    logging.RedactDSN(dbCfg.DSN),
	}).Debug("database opened")

	return &env{cfg: cfg, log: log, db: db}, nil
}

func (e *env) dialect() database.Dialect {
	return e.cfg.Database.Dialect()
}

func (e *env) Close() error {
	return e.db.Close()
}
