package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	MetricsAddr   string
	StorageDriver string // memory | mysql
	MySQLDSN      string
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	CacheTTL      time.Duration
	IdemTTL       time.Duration
	MutationRPS   int
	SeedFile      string
	SeedWorkers   int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ":9100"),
		StorageDriver: env("STORAGE_DRIVER", "mysql"),
		MySQLDSN:      env("MYSQL_DSN", "root:root@tcp(localhost:3306)/rates?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		IdemTTL:       time.Duration(atoi("IDEMPOTENCY_TTL_SECONDS", 86400)) * time.Second,
		MutationRPS:   atoi("MUTATION_RPS", 25),
		SeedFile:      env("SEED_FILE", "seed/rates.json"),
		SeedWorkers:   atoi("SEED_WORKERS", 8),
	}
	if c.StorageDriver != "memory" && c.StorageDriver != "mysql" {
		log.Warn().Str("driver", c.StorageDriver).Msg("unknown STORAGE_DRIVER, falling back to mysql")
		c.StorageDriver = "mysql"
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
