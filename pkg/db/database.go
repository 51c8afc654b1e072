package db

import (
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/glebarez/sqlite"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table owned by the service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Conversation{},
		&Message{},
		&Document{},
		&ConversationDocument{},
	}
}

// Open connects to the configured database. driver is one of sqlite, mysql or
// postgres; verbose enables gorm SQL logging.
func Open(driver, dsn string, verbose bool) (*gorm.DB, error) {
	driver = strings.ToLower(driver)
	if driver == "" {
		driver = "sqlite"
	}
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}

	logMode := logger.Silent
	if verbose {
		logMode = logger.Info
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "db: open %s", driver)
	}

	if driver == "sqlite" {
		// SQLite allows a single writer; one shared connection also keeps
		// in-memory databases visible to every query.
		sqlDB, err := database.DB()
		if err != nil {
			return nil, errors.Wrap(err, "db: sqlite handle")
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return database, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "mysql":
		cfg, err := mysqldriver.ParseDSN(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "db: parse mysql dsn")
		}
		// time.Time columns need parseTime for ordering by created_at.
		cfg.ParseTime = true
		return mysql.Open(cfg.FormatDSN()), nil
	case "postgres":
		return postgres.New(postgres.Config{
			DriverName: "postgres",
			DSN:        dsn,
		}), nil
	default:
		return nil, errors.Errorf("db: unsupported driver %q", driver)
	}
}

// Migrate creates or updates all tables.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(Models()...); err != nil {
		return errors.Wrap(err, "db: auto migrate")
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return errors.Wrap(err, "db: close")
	}
	return sqlDB.Close()
}
