package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const EnvPrefix = "TEAMTRIVIA"

type Config struct {
	Port        int
	BindAddress string
	DBDriver    string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string
	RedisAddr   string
	CatalogPath string
	PublicURL   string
	LogLevel    string
}

// RegisterFlags declares every setting on fs with its default.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: TEAMTRIVIA_PORT)")
	fs.StringVarP(&cfg.BindAddress, "bind", "b", "0.0.0.0", "address to bind to (env: TEAMTRIVIA_BIND)")
	fs.StringVar(&cfg.DBDriver, "db-driver", "postgres", "database driver, postgres or sqlite (env: TEAMTRIVIA_DB_DRIVER)")
	fs.StringVar(&cfg.DBHost, "db-host", "localhost", "postgres host (env: TEAMTRIVIA_DB_HOST)")
	fs.StringVar(&cfg.DBPort, "db-port", "5432", "postgres port (env: TEAMTRIVIA_DB_PORT)")
	fs.StringVar(&cfg.DBUser, "db-user", "teamtrivia", "postgres user (env: TEAMTRIVIA_DB_USER)")
	fs.StringVar(&cfg.DBPassword, "db-password", "teamtrivia", "postgres password (env: TEAMTRIVIA_DB_PASSWORD)")
	fs.StringVar(&cfg.DBName, "db-name", "teamtrivia", "postgres database name (env: TEAMTRIVIA_DB_NAME)")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", "teamtrivia.db", "sqlite database file (env: TEAMTRIVIA_SQLITE_PATH)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address for cross-instance updates, empty to disable (env: TEAMTRIVIA_REDIS_ADDR)")
	fs.StringVar(&cfg.CatalogPath, "catalog", "", "YAML question catalog, empty for the built-in one (env: TEAMTRIVIA_CATALOG)")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "base URL encoded in join QR codes (env: TEAMTRIVIA_PUBLIC_URL)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error (env: TEAMTRIVIA_LOG_LEVEL)")
}

// BindEnv lets TEAMTRIVIA_* environment variables fill any flag that was not
// set on the command line. A value the flag cannot parse is an error.
func BindEnv(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, err)
			return
		}
		if err := v.BindEnv(f.Name); err != nil {
			errs = append(errs, err)
			return
		}
		if !f.Changed && v.IsSet(f.Name) {
			env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", env, err))
			}
		}
	})
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.DBDriver)
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("public url must be absolute, e.g. https://trivia.example.com")
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.Port)
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBDriver == "sqlite" {
		// sqlite allows one writer; queue them in the pool instead of failing with SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to configure sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// InitRedis returns nil when no address is configured.
func InitRedis(cfg *Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// NewLogger builds the colored slog logger used across the service.
func NewLogger(level string) *slog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	}))
}
