package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	AgentID string `mapstructure:"agentID"` // 收银端标识，为空时自动生成
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// BackendConfig POS 后端 REST API 配置
type BackendConfig struct {
	BaseURL        string        `mapstructure:"baseURL"`
	HealthPath     string        `mapstructure:"healthPath"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
}

// HealthURL 返回健康检查完整地址
func (b BackendConfig) HealthURL() string {
	base := strings.TrimRight(b.BaseURL, "/")
	path := b.HealthPath
	if path == "" {
		path = "/ping"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// ConnectivityConfig 连接监控参数
type ConnectivityConfig struct {
	CheckInterval           time.Duration `mapstructure:"checkInterval"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	CheckOnFocus            bool          `mapstructure:"checkOnFocus"`
	CheckOnVisibilityChange bool          `mapstructure:"checkOnVisibilityChange"`
	CheckOnStart            bool          `mapstructure:"checkOnStart"`
	RecheckDebounce         time.Duration `mapstructure:"recheckDebounce"`
	OnlineSettleDelay       time.Duration `mapstructure:"onlineSettleDelay"`
	HistorySize             int           `mapstructure:"historySize"`
}

// 宿主环境模式
const (
	HostModeManual = "manual" // 由前端通过 API 推送 online/offline/visibility/focus 事件
	HostModeProbe  = "probe"  // 无界面模式，定期拨号探测本机网络
)

// HostConfig 宿主环境（网络/可见性事件来源）配置
type HostConfig struct {
	Mode          string        `mapstructure:"mode"`
	ProbeTarget   string        `mapstructure:"probeTarget"`
	ProbeInterval time.Duration `mapstructure:"probeInterval"`
	ProbeTimeout  time.Duration `mapstructure:"probeTimeout"`
}

// APIConfig 对外 API 配置
type APIConfig struct {
	RecheckRatePerSec int      `mapstructure:"recheckRatePerSec"`
	RecheckBurst      int      `mapstructure:"recheckBurst"`
	AuthEnabled       bool     `mapstructure:"authEnabled"`
	APIKeys           []string `mapstructure:"apiKeys"`
	CORSEnabled       bool     `mapstructure:"corsEnabled"` // 收银界面与本服务不同源时开启
}

// RedisConfig Redis 快照发布配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	KeyPrefix    string        `mapstructure:"keyPrefix"`
	SnapshotTTL  time.Duration `mapstructure:"snapshotTTL"`
}

// WebhookConfig 连接状态变化推送（后台告警）配置
type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"apiKey"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// Config 顶层配置结构
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Backend      BackendConfig      `mapstructure:"backend"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Host         HostConfig         `mapstructure:"host"`
	API          APIConfig          `mapstructure:"api"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Webhook      WebhookConfig      `mapstructure:"webhook"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 POS_CONFIG 读取；否则回退到 configs/agent.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("agent")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 首次运行允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("backend.baseURL is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("backend.baseURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.baseURL: unsupported scheme %q", u.Scheme)
	}

	durations := map[string]time.Duration{
		"connectivity.checkInterval":     c.Connectivity.CheckInterval,
		"connectivity.timeout":           c.Connectivity.Timeout,
		"connectivity.recheckDebounce":   c.Connectivity.RecheckDebounce,
		"connectivity.onlineSettleDelay": c.Connectivity.OnlineSettleDelay,
		"host.probeInterval":             c.Host.ProbeInterval,
		"host.probeTimeout":              c.Host.ProbeTimeout,
	}
	for key, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}

	if c.API.AuthEnabled && len(c.API.APIKeys) == 0 {
		return errors.New("api.apiKeys is required when api.authEnabled is true")
	}

	if c.Webhook.Enabled {
		wu, err := url.Parse(c.Webhook.URL)
		if err != nil || (wu.Scheme != "http" && wu.Scheme != "https") {
			return fmt.Errorf("webhook.url: must be an http(s) url, got %q", c.Webhook.URL)
		}
	}

	switch c.Host.Mode {
	case HostModeManual, HostModeProbe:
	default:
		return fmt.Errorf("host.mode: unknown mode %q", c.Host.Mode)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pos-connectivity")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.agentID", "")

	v.SetDefault("http.addr", ":8089")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "15s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/pos-connectivity.log")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("backend.baseURL", "http://localhost:8080/api")
	v.SetDefault("backend.healthPath", "/ping")
	v.SetDefault("backend.requestTimeout", "10s")

	v.SetDefault("connectivity.checkInterval", "10m")
	v.SetDefault("connectivity.timeout", "10s")
	v.SetDefault("connectivity.checkOnFocus", false)
	v.SetDefault("connectivity.checkOnVisibilityChange", true)
	v.SetDefault("connectivity.checkOnStart", true)
	v.SetDefault("connectivity.recheckDebounce", "1s")
	v.SetDefault("connectivity.onlineSettleDelay", "1s")
	v.SetDefault("connectivity.historySize", 100)

	v.SetDefault("host.mode", HostModeManual)
	v.SetDefault("host.probeTarget", "1.1.1.1:53")
	v.SetDefault("host.probeInterval", "15s")
	v.SetDefault("host.probeTimeout", "3s")

	v.SetDefault("api.recheckRatePerSec", 1)
	v.SetDefault("api.recheckBurst", 3)
	v.SetDefault("api.authEnabled", false)
	v.SetDefault("api.apiKeys", []string{})
	v.SetDefault("api.corsEnabled", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 4)
	v.SetDefault("redis.minIdleConns", 1)
	v.SetDefault("redis.dialTimeout", "3s")
	v.SetDefault("redis.readTimeout", "2s")
	v.SetDefault("redis.writeTimeout", "2s")
	v.SetDefault("redis.keyPrefix", "pos:connectivity")
	v.SetDefault("redis.snapshotTTL", "30m")

	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", "5s")
	v.SetDefault("webhook.retries", 3)
}
