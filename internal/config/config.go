package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL                 string `yaml:"ttl"`
		RevealCorrectOption string `yaml:"reveal_correct_option"`
		// ParticipationStore is memory, redis or postgres. Empty picks the
		// most durable backend configured.
		ParticipationStore string `yaml:"participation_store"`
	} `yaml:"quiz"`
	Monitor struct {
		Buffer         int     `yaml:"buffer"`
		WriteWait      string  `yaml:"write_wait"`
		PongWait       string  `yaml:"pong_wait"`
		StatsPerSec    float64 `yaml:"stats_per_sec"`
		AllowAnyOrigin bool    `yaml:"allow_any_origin"`
	} `yaml:"monitor"`
	Courses struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
		Retries uint64 `yaml:"retries"`
		// Roster is used when URL is empty: course id to enrolled students.
		Roster map[string][]RosterEntry `yaml:"roster"`
		// OpenEnrollment accepts every email when URL is empty.
		OpenEnrollment bool `yaml:"open_enrollment"`
	} `yaml:"courses"`
}

type RosterEntry struct {
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
}

// Load reads YAML config from path, then applies environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (Config, error) {
	cfg := Config{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("COURSES_SERVICE_URL"); v != "" {
		cfg.Courses.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
