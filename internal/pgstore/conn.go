package pgstore

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
	slowQueryThreshold     = 200 * time.Millisecond
	defaultTable           = "strategy_sources"
)

// Option defines how to reach the PostgreSQL database.
type Option struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Params   map[string]string
	// ConnString, when set, is used as is and the fields above are ignored.
	ConnString string
	// Table defaults to strategy_sources.
	Table string
	// Migrate creates or updates the table on open.
	Migrate bool
	// Logger receives gorm's warnings and slow query reports. Nil silences
	// them.
	Logger *slog.Logger
}

func (opt Option) dsn() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func (opt Option) table() string {
	if opt.Table == "" {
		return defaultTable
	}
	return opt.Table
}

func (opt Option) gormConfig() *gorm.Config {
	if opt.Logger == nil {
		return &gorm.Config{Logger: gormlogger.Discard}
	}
	return &gorm.Config{
		Logger: gormlogger.New(
			slog.NewLogLogger(opt.Logger.Handler(), slog.LevelWarn),
			gormlogger.Config{
				SlowThreshold:             slowQueryThreshold,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	}
}
