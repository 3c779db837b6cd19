package config

import (
	"errors"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                string            `mapstructure:"env"`
	LogLevel           string            `mapstructure:"log_level"`
	LogType            string            `mapstructure:"log_type"`
	ServiceName        string            `mapstructure:"service_name"`
	Port               string            `mapstructure:"port"`
	Version            string            `mapstructure:"version"`
	HttpClientSettings *HttpClientConfig `mapstructure:"http_client"`
	FetcherSettings    *FetcherConfig    `mapstructure:"fetcher"`
	ArticleProxy       *ProxyConfig      `mapstructure:"article_proxy"`
	RssProxy           *ProxyConfig      `mapstructure:"rss_proxy"`
	CacheSettings      *CacheConfig      `mapstructure:"cache"`
	TelemetrySettings  *TelemetryConfig  `mapstructure:"telemetry"`
}

type HttpClientConfig struct {
	RequestTimeout            time.Duration `mapstructure:"request_timeout"`
	MaxIdleConnections        int           `mapstructure:"max_idle_connections"`
	MaxIdleConnectionsPerHost int           `mapstructure:"max_idle_connections_per_host"`
	MaxConnectionsPerHost     int           `mapstructure:"max_connections_per_host"`
	IdleConnectionTimeout     time.Duration `mapstructure:"idle_connection_timeout"`
	TlsHandshakeTimeout       time.Duration `mapstructure:"tls_handshake_timeout"`
	DialTimeout               time.Duration `mapstructure:"dial_timeout"`
	DialKeepAlive             time.Duration `mapstructure:"dial_keep_alive"`
	MaxRedirects              int           `mapstructure:"max_redirects"`
}

type FetcherConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	AcceptLanguage string        `mapstructure:"accept_language"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	RequestsLimit  int           `mapstructure:"requests_limit"` // <= 0 disables outbound throttling
	TimeInterval   time.Duration `mapstructure:"time_interval"`
}

// ProxyConfig describes one proxy endpoint: which publishers it may reach and how long
// its responses stay fresh for the fronting cache.
type ProxyConfig struct {
	AllowedDomains       []string          `mapstructure:"allowed_domains"`
	Freshness            time.Duration     `mapstructure:"freshness"`
	StaleWhileRevalidate time.Duration     `mapstructure:"stale_while_revalidate"`
	Strategies           map[string]string `mapstructure:"strategies"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Servers []string      `mapstructure:"servers"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	CollectorUrl string `mapstructure:"collector_url"`
}

func MustLoad() *Config {
	cfg, err := Load(path.Join("."))
	if err != nil {
		slog.Error("can't initialize config.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return cfg
}

// Load reads config.yaml from dir when present. Missing files are not an error: every key
// has a default and can be overridden from the environment.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		slog.Warn("config file not found. Using defaults.", slog.String("dir", dir))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_type", "text")
	v.SetDefault("service_name", "ksb-content-proxy")
	v.SetDefault("port", "8080")
	v.SetDefault("version", "dev")

	v.SetDefault("http_client.request_timeout", 15*time.Second)
	v.SetDefault("http_client.max_idle_connections", 100)
	v.SetDefault("http_client.max_idle_connections_per_host", 10)
	v.SetDefault("http_client.max_connections_per_host", 20)
	v.SetDefault("http_client.idle_connection_timeout", 90*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.dial_timeout", 5*time.Second)
	v.SetDefault("http_client.dial_keep_alive", 30*time.Second)
	v.SetDefault("http_client.max_redirects", 5)

	v.SetDefault("fetcher.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("fetcher.accept_language", "en-US,en;q=0.9")
	v.SetDefault("fetcher.max_body_bytes", 5*1024*1024)
	v.SetDefault("fetcher.requests_limit", 0)
	v.SetDefault("fetcher.time_interval", time.Second)

	v.SetDefault("article_proxy.allowed_domains", []string{
		"ussugar.com", "dwmco.com", "agweek.com", "ragus.co.uk", "sugarjournal.com", "sugarcaneworld.com",
	})
	v.SetDefault("article_proxy.freshness", time.Hour)
	v.SetDefault("article_proxy.stale_while_revalidate", 2*time.Hour)
	v.SetDefault("article_proxy.strategies", map[string]string{
		"dwmco.com":        "paragraphs",
		"ussugar.com":      "strip-media",
		"sugarjournal.com": "aggressive",
	})

	v.SetDefault("rss_proxy.allowed_domains", []string{
		"chinimandi.com", "sugaronline.com", "agweb.com", "nation.africa", "standardmedia.co.ke", "farmersreviewafrica.com",
	})
	v.SetDefault("rss_proxy.freshness", 5*time.Minute)
	v.SetDefault("rss_proxy.stale_while_revalidate", 10*time.Minute)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.servers", []string{"127.0.0.1:11211"})
	v.SetDefault("cache.timeout", 500*time.Millisecond)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.collector_url", "localhost:4318")
}
