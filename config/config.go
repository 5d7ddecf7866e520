package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort  string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost  string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"questloop"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"questloop"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`
	// 只读副本，逗号分隔的 host:port，模板目录等只读查询走副本
	PostgreSQLReplicas []string `env:"POSTGRESQL_REPLICAS" envSeparator:","`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"qloop"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`
	EventsExchange   string `env:"EVENTS_EXCHANGE" envDefault:"events.topic"`

	// JWT 配置，只做校验，签发在认证服务
	JWTSecret string `env:"JWT_SECRET"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪配置
	OTLPEndpoint   string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
	TracingEnabled bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TracingSampler float64 `env:"TRACING_SAMPLER" envDefault:"0.1"`

	// 任务引擎配置
	QuestTimezone         string        `env:"QUEST_TIMEZONE" envDefault:"Local"`
	QuestTxMaxRetries     int           `env:"QUEST_TX_MAX_RETRIES" envDefault:"3"`
	QuestTxBaseDelay      time.Duration `env:"QUEST_TX_BASE_DELAY" envDefault:"50ms"`
	QuestSweepInterval    time.Duration `env:"QUEST_SWEEP_INTERVAL" envDefault:"5m"`
	QuestSweepConcurrency int           `env:"QUEST_SWEEP_CONCURRENCY" envDefault:"8"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}
}

// Validate 校验启动必需的配置，由各个二进制入口调用
func (c *Config) Validate(requireJWT bool) error {
	if requireJWT && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	if _, err := c.loadLocation(); err != nil {
		return fmt.Errorf("invalid QUEST_TIMEZONE %q: %w", c.QuestTimezone, err)
	}

	if c.QuestTxMaxRetries < 0 {
		return errors.New("QUEST_TX_MAX_RETRIES must not be negative")
	}

	if c.QuestSweepConcurrency <= 0 {
		log.Printf("WARN: QUEST_SWEEP_CONCURRENCY is %d, falling back to 1", c.QuestSweepConcurrency)
		c.QuestSweepConcurrency = 1
	}

	return nil
}

func (c *Config) GetDSN() string {
	return c.dsnFor(c.PostgreSQLHost, c.PostgreSQLPort)
}

// GetReplicaDSNs 根据副本列表生成 DSN，端口缺省时沿用主库端口
func (c *Config) GetReplicaDSNs() []string {
	dsns := make([]string, 0, len(c.PostgreSQLReplicas))
	for _, replica := range c.PostgreSQLReplicas {
		replica = strings.TrimSpace(replica)
		if replica == "" {
			continue
		}
		host, port := replica, c.PostgreSQLPort
		if idx := strings.LastIndex(replica, ":"); idx > 0 {
			host, port = replica[:idx], replica[idx+1:]
		}
		dsns = append(dsns, c.dsnFor(host, port))
	}
	return dsns
}

func (c *Config) dsnFor(host, port string) string {
	return "host=" + host +
		" port=" + port +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

var (
	locMu    sync.RWMutex
	locCache = map[string]*time.Location{}
)

// Location 任务每日 03:00 分界线所使用的时区，按时区名缓存，非法时区回退到本地时区
func (c *Config) Location() *time.Location {
	locMu.RLock()
	loc, ok := locCache[c.QuestTimezone]
	locMu.RUnlock()
	if ok {
		return loc
	}

	loc, err := c.loadLocation()
	if err != nil {
		loc = time.Local
	}

	locMu.Lock()
	locCache[c.QuestTimezone] = loc
	locMu.Unlock()
	return loc
}

func (c *Config) loadLocation() (*time.Location, error) {
	if c.QuestTimezone == "" || strings.EqualFold(c.QuestTimezone, "Local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.QuestTimezone)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
