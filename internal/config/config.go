package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/viper"

	"github.com/siting-service/internal/pkg/validator"
)

type Config struct {
	Probe        ProbeConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	RedisStreams RedisStreamsConfig
	Cache        CacheConfig
	Log          LogConfig
	Coverage     CoverageConfig
	Solver       SolverConfig
	Scenario     ScenarioConfig
	Worker       WorkerConfig
}

// ProbeConfig - внутренний сервер liveness/readiness
type ProbeConfig struct {
	Host string
	Port int `validate:"gte=0,lte=65535"`
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisStreamsConfig - отдельное подключение для стримов; по умолчанию тот же Redis
type RedisStreamsConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CacheConfig struct {
	CoverageTTL time.Duration
	// LockTTL - время жизни блокировки построения покрытия
	LockTTL time.Duration
	// LockWait - сколько ждать чужого построения перед ошибкой
	LockWait time.Duration
}

type LogConfig struct {
	Level string `validate:"omitempty,oneof=debug info warn error"`
}

type CoverageConfig struct {
	Workers   int     `validate:"gte=0"`
	SnapWarnM float64 `validate:"gte=0"`
	// PlanPath - YAML-план с исходными файлами регионов. Без него worker
	// не достраивает отсутствующее покрытие.
	PlanPath string
}

type SolverConfig struct {
	Strategy        string        `validate:"oneof=exact greedy auto"`
	Timeout         time.Duration `validate:"gte=0"`
	MaxVariables    int           `validate:"gte=0"`
	EquityThreshold float64       `validate:"gte=0,lte=1"`
}

type ScenarioConfig struct {
	Parallelism          int     `validate:"gte=0"`
	DiminishingThreshold float64 `validate:"gt=0"`
}

type WorkerConfig struct {
	Enabled       bool
	ConsumerGroup string `validate:"required"`
	BatchSize     int64  `validate:"gt=0"`
	PollInterval  time.Duration
	MaxRetries    int
}

// Load читает .env из рабочего каталога и переменные окружения
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile читает указанный env-файл, если он есть; переменные окружения
// имеют приоритет. Отсутствие файла не ошибка.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Probe: ProbeConfig{
			Host: v.GetString("PROBE_HOST"),
			Port: v.GetInt("PROBE_PORT"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxConns:        v.GetInt("DB_MAX_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME")) * time.Second,
			ConnMaxIdleTime: time.Duration(v.GetInt("DB_CONN_MAX_IDLE_TIME")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RedisStreams: RedisStreamsConfig{
			Host:     v.GetString("REDIS_STREAMS_HOST"),
			Port:     v.GetInt("REDIS_STREAMS_PORT"),
			Password: v.GetString("REDIS_STREAMS_PASSWORD"),
			DB:       v.GetInt("REDIS_STREAMS_DB"),
		},
		Cache: CacheConfig{
			CoverageTTL: time.Duration(v.GetInt("CACHE_COVERAGE_TTL")) * time.Second,
			LockTTL:     time.Duration(v.GetInt("CACHE_LOCK_TTL")) * time.Second,
			LockWait:    time.Duration(v.GetInt("CACHE_LOCK_WAIT")) * time.Second,
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Coverage: CoverageConfig{
			Workers:   v.GetInt("COVERAGE_WORKERS"),
			SnapWarnM: v.GetFloat64("COVERAGE_SNAP_WARN_M"),
			PlanPath:  v.GetString("COVERAGE_PLAN_PATH"),
		},
		Solver: SolverConfig{
			Strategy:        v.GetString("SOLVER_STRATEGY"),
			Timeout:         time.Duration(v.GetInt("SOLVER_TIMEOUT")) * time.Second,
			MaxVariables:    v.GetInt("SOLVER_MAX_VARIABLES"),
			EquityThreshold: v.GetFloat64("EQUITY_THRESHOLD"),
		},
		Scenario: ScenarioConfig{
			Parallelism:          v.GetInt("SCENARIO_PARALLELISM"),
			DiminishingThreshold: v.GetFloat64("DIMINISHING_RETURNS_THRESHOLD"),
		},
		Worker: WorkerConfig{
			Enabled:       v.GetBool("WORKER_ENABLED"),
			ConsumerGroup: v.GetString("WORKER_CONSUMER_GROUP"),
			BatchSize:     v.GetInt64("WORKER_BATCH_SIZE"),
			PollInterval:  time.Duration(v.GetInt("WORKER_POLL_INTERVAL")) * time.Millisecond,
			MaxRetries:    v.GetInt("WORKER_MAX_RETRIES"),
		},
	}

	cfg.applyDefaults()

	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %s", validator.Describe(err))
	}

	return cfg, nil
}

// Set default values if not provided
func (c *Config) applyDefaults() {
	if c.Probe.Port == 0 {
		c.Probe.Port = 8081
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.RedisStreams.Host == "" {
		c.RedisStreams.Host = c.Redis.Host
		c.RedisStreams.Password = c.Redis.Password
	}
	if c.RedisStreams.Port == 0 {
		c.RedisStreams.Port = c.Redis.Port
	}
	if c.Cache.CoverageTTL == 0 {
		c.Cache.CoverageTTL = 24 * time.Hour
	}
	if c.Cache.LockTTL == 0 {
		c.Cache.LockTTL = 10 * time.Minute
	}
	if c.Cache.LockWait == 0 {
		c.Cache.LockWait = c.Cache.LockTTL
	}
	if c.Coverage.Workers == 0 {
		c.Coverage.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Coverage.SnapWarnM == 0 {
		c.Coverage.SnapWarnM = 500
	}
	if c.Solver.Strategy == "" {
		c.Solver.Strategy = "auto"
	}
	if c.Solver.Timeout == 0 {
		c.Solver.Timeout = 60 * time.Second
	}
	if c.Solver.MaxVariables == 0 {
		c.Solver.MaxVariables = 250
	}
	if c.Solver.EquityThreshold == 0 {
		c.Solver.EquityThreshold = 0.6
	}
	if c.Scenario.DiminishingThreshold == 0 {
		c.Scenario.DiminishingThreshold = 0.01
	}
	if c.Worker.ConsumerGroup == "" {
		c.Worker.ConsumerGroup = "siting-scenario-workers"
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 20
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 100 * time.Millisecond
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 3
	}
}

func (c *Config) GetProbeAddr() string {
	return fmt.Sprintf("%s:%d", c.Probe.Host, c.Probe.Port)
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
