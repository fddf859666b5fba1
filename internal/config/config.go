// Package config loads application settings: defaults, then an optional
// config.yaml, then DAMEBOORU_-prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Storage struct {
	DatabasePath  string
	ThumbnailPath string
	TempPath      string
}

type HTTP struct {
	Addr string
}

type Scanner struct {
	BatchSize   int
	Parallelism int
}

type Processing struct {
	RunScheduler              bool
	MetadataParallelism       int
	SimilarityParallelism     int
	ThumbnailParallelism      int
	JobProgressReportInterval time.Duration
}

type Ingestion struct {
	BatchSize       int
	ChannelCapacity int
}

type DBLog struct {
	MinimumLevel    slog.Level
	BatchSize       int
	FlushInterval   time.Duration
	ChannelCapacity int
	RetentionDays   int
	MaxRows         int64
}

type Auth struct {
	Enabled  bool
	Username string
	Password string
}

type Config struct {
	Storage    Storage
	HTTP       HTTP
	Scanner    Scanner
	Processing Processing
	Ingestion  Ingestion
	DBLog      DBLog
	Auth       Auth
}

// Load reads the optional config file (path from DAMEBOORU_CONFIG, or
// config.yaml in the working directory) and applies environment
// overrides like DAMEBOORU_STORAGE_DATABASE_PATH.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DAMEBOORU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("DAMEBOORU_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return &Config{
		Storage: Storage{
			DatabasePath:  v.GetString("storage.database_path"),
			ThumbnailPath: v.GetString("storage.thumbnail_path"),
			TempPath:      v.GetString("storage.temp_path"),
		},
		HTTP: HTTP{
			Addr: v.GetString("http.addr"),
		},
		Scanner: Scanner{
			BatchSize:   v.GetInt("scanner.batch_size"),
			Parallelism: v.GetInt("scanner.parallelism"),
		},
		Processing: Processing{
			RunScheduler:              v.GetBool("processing.run_scheduler"),
			MetadataParallelism:       v.GetInt("processing.metadata_parallelism"),
			SimilarityParallelism:     v.GetInt("processing.similarity_parallelism"),
			ThumbnailParallelism:      v.GetInt("processing.thumbnail_parallelism"),
			JobProgressReportInterval: time.Duration(v.GetInt("processing.job_progress_report_interval_ms")) * time.Millisecond,
		},
		Ingestion: Ingestion{
			BatchSize:       v.GetInt("ingestion.batch_size"),
			ChannelCapacity: v.GetInt("ingestion.channel_capacity"),
		},
		DBLog: DBLog{
			MinimumLevel:    parseLevel(v.GetString("logging.db.minimum_level")),
			BatchSize:       v.GetInt("logging.db.batch_size"),
			FlushInterval:   time.Duration(v.GetInt("logging.db.flush_interval_ms")) * time.Millisecond,
			ChannelCapacity: v.GetInt("logging.db.channel_capacity"),
			RetentionDays:   v.GetInt("logging.db.retention_days"),
			MaxRows:         v.GetInt64("logging.db.max_rows"),
		},
		Auth: Auth{
			Enabled:  v.GetBool("auth.enabled"),
			Username: v.GetString("auth.username"),
			Password: v.GetString("auth.password"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.database_path", "data/damebooru.db")
	v.SetDefault("storage.thumbnail_path", "data/thumbs")
	v.SetDefault("storage.temp_path", os.TempDir())
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("scanner.batch_size", 500)
	v.SetDefault("scanner.parallelism", 2)
	v.SetDefault("processing.run_scheduler", true)
	v.SetDefault("processing.metadata_parallelism", 2)
	v.SetDefault("processing.similarity_parallelism", 2)
	v.SetDefault("processing.thumbnail_parallelism", 2)
	v.SetDefault("processing.job_progress_report_interval_ms", 1000)
	v.SetDefault("ingestion.batch_size", 100)
	v.SetDefault("ingestion.channel_capacity", 1000)
	v.SetDefault("logging.db.minimum_level", "info")
	v.SetDefault("logging.db.batch_size", 50)
	v.SetDefault("logging.db.flush_interval_ms", 2000)
	v.SetDefault("logging.db.channel_capacity", 1000)
	v.SetDefault("logging.db.retention_days", 7)
	v.SetDefault("logging.db.max_rows", 100000)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
}

// parseLevel reads a slog level name; anything unrecognized means info.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
