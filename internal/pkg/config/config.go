// internal/pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是整个服务的显式配置。在 main 中加载一次，
// 逐层注入到各个构造函数，没有进程级可变单例。
type Config struct {
	App struct {
		ServiceName       string        `yaml:"service_name"`
		Port              int           `yaml:"port"`
		ReservationTTL    time.Duration `yaml:"reservation_ttl"`    // Pending 预订的保留时长
		SweepInterval     time.Duration `yaml:"sweep_interval"`     // 过期清扫周期
		PermissionTimeout time.Duration `yaml:"permission_timeout"` // 权限检查回源超时上限
	} `yaml:"app"`

	Infra struct {
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers    []string `yaml:"brokers"`
			AlertTopic string   `yaml:"alert_topic"`
			AuditTopic string   `yaml:"audit_topic"`
		} `yaml:"kafka"`
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Nacos struct {
			Enabled   bool   `yaml:"enabled"`
			Addrs     string `yaml:"addrs"`
			Namespace string `yaml:"namespace"`
			Group     string `yaml:"group"`
		} `yaml:"nacos"`
		Zookeeper struct {
			Enabled bool     `yaml:"enabled"`
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`
	} `yaml:"infra"`

	// Ledger 是外部分布式账本网关的连接参数
	Ledger struct {
		BaseURL        string        `yaml:"base_url"`
		StreamURL      string        `yaml:"stream_url"` // websocket 事件流地址
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"ledger"`

	Sync struct {
		Interval    time.Duration `yaml:"interval"`
		BatchSize   int           `yaml:"batch_size"`
		MaxAttempts int           `yaml:"max_attempts"`
		BackoffBase time.Duration `yaml:"backoff_base"`
		BackoffMax  time.Duration `yaml:"backoff_max"`
	} `yaml:"sync"`

	Permission struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"permission"`

	AlertRules []AlertRule `yaml:"alert_rules"`
}

// AlertRule 是一条运营配置的库存告警规则，Expr 为 CEL 表达式
type AlertRule struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Severity string `yaml:"severity"`
	Expr     string `yaml:"expr"`
	Message  string `yaml:"message"`
}

// Load 从 path 读取 YAML 配置并套用默认值。path 为空时取 CONFIG_PATH
// 环境变量，仍为空则只用默认值启动（本地开发场景）。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.App.ServiceName = "inventory-service"
	c.App.Port = 8087
	c.App.ReservationTTL = 15 * time.Minute
	c.App.SweepInterval = 30 * time.Second
	c.App.PermissionTimeout = 2 * time.Second

	c.Infra.Mysql.DSN = "root:root@tcp(localhost:3306)/akwa?charset=utf8mb4&parseTime=True&loc=Local"
	c.Infra.Redis.Addr = "localhost:6379"
	c.Infra.Kafka.Brokers = []string{"localhost:9092"}
	c.Infra.Kafka.AlertTopic = "inventory-alerts"
	c.Infra.Kafka.AuditTopic = "permission-audit"
	c.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	c.Infra.Nacos.Group = "DEFAULT_GROUP"

	c.Ledger.BaseURL = "http://localhost:8545"
	c.Ledger.StreamURL = "ws://localhost:8546/events"
	c.Ledger.RequestTimeout = 5 * time.Second

	c.Sync.Interval = 5 * time.Second
	c.Sync.BatchSize = 100
	c.Sync.MaxAttempts = 8
	c.Sync.BackoffBase = 2 * time.Second
	c.Sync.BackoffMax = 5 * time.Minute

	c.Permission.CacheTTL = time.Hour
}

// applyEnvOverrides 允许容器环境用环境变量覆盖连接地址类配置
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		c.Infra.Mysql.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Infra.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		c.Infra.Jaeger.Endpoint = v
	}
	if v := os.Getenv("LEDGER_BASE_URL"); v != "" {
		c.Ledger.BaseURL = v
	}
	if v := os.Getenv("LEDGER_STREAM_URL"); v != "" {
		c.Ledger.StreamURL = v
	}
}
