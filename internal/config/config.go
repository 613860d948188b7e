package config

import (
	"fmt"
	u "net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tanq16/partget/internal/utils"
)

const EnvPrefix = "PARTGET"

// Config holds every run option. Keys match the CLI flag names so flags,
// PARTGET_* environment variables and the YAML config file share one
// namespace. Precedence: flags, then environment, then file, then defaults.
type Config struct {
	Connections      int           `mapstructure:"connections"`
	Output           string        `mapstructure:"output"`
	Timeout          time.Duration `mapstructure:"timeout"`
	KeepAliveTimeout time.Duration `mapstructure:"keep-alive-timeout"`
	UserAgent        string        `mapstructure:"user-agent"`
	Proxy            string        `mapstructure:"proxy"`
	ProxyUsername    string        `mapstructure:"proxy-username"`
	ProxyPassword    string        `mapstructure:"proxy-password"`
	Headers          []string      `mapstructure:"header"`
	Token            string        `mapstructure:"token"`
	MaxRetries       int           `mapstructure:"max-retries"`
	RetryDelay       time.Duration `mapstructure:"retry-delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry-max-delay"`
	PollInterval     time.Duration `mapstructure:"poll-interval"`
	ScratchDir       string        `mapstructure:"scratch-dir"`
	MetadataOut      string        `mapstructure:"metadata-out"`
	Debug            bool          `mapstructure:"debug"`
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("connections", 0)
	v.SetDefault("output", "")
	v.SetDefault("timeout", 3*time.Minute)
	v.SetDefault("keep-alive-timeout", 90*time.Second)
	v.SetDefault("user-agent", utils.ToolUserAgent)
	v.SetDefault("proxy", "")
	v.SetDefault("proxy-username", "")
	v.SetDefault("proxy-password", "")
	v.SetDefault("header", []string{})
	v.SetDefault("token", "")
	v.SetDefault("max-retries", utils.DefaultMaxRetries)
	v.SetDefault("retry-delay", utils.DefaultRetryInitialDelay)
	v.SetDefault("retry-max-delay", utils.DefaultRetryMaxDelay)
	v.SetDefault("poll-interval", utils.DefaultPollInterval)
	v.SetDefault("scratch-dir", "")
	v.SetDefault("metadata-out", "")
	v.SetDefault("debug", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load binds flags (when non-nil), reads configPath (when set) and decodes
// the merged result.
func Load(v *viper.Viper, flags *pflag.FlagSet, configPath string) (*Config, error) {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("%w: failed to bind flags: %v", utils.ErrConfiguration, err)
		}
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %v", utils.ErrConfiguration, err)
		}
	}
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", utils.ErrConfiguration, err)
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Connections <= 0 {
		return fmt.Errorf("%w: %w (got %d)", utils.ErrConfiguration, utils.ErrInvalidWorkerCount, c.Connections)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max-retries must not be negative", utils.ErrConfiguration)
	}
	if c.RetryDelay <= 0 || c.RetryMaxDelay < c.RetryDelay {
		return fmt.Errorf("%w: retry delays must be positive with retry-max-delay >= retry-delay", utils.ErrConfiguration)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll-interval must be positive", utils.ErrConfiguration)
	}
	if c.Timeout < 0 || c.KeepAliveTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", utils.ErrConfiguration)
	}
	return nil
}

func (c *Config) HTTPClientConfig() utils.HTTPClientConfig {
	userAgent := c.UserAgent
	if userAgent == "randomize" {
		userAgent = utils.GetRandomUserAgent()
	}
	proxyURL, proxyUsername, proxyPassword := c.Proxy, c.ProxyUsername, c.ProxyPassword
	// credentials embedded in the proxy URL apply unless given separately
	parsedProxy, err := u.Parse(proxyURL)
	if err == nil && parsedProxy.User != nil && proxyUsername == "" {
		proxyUsername = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			proxyPassword = password
		}
		parsedProxy.User = nil
		proxyURL = parsedProxy.String()
	}
	return utils.HTTPClientConfig{
		Timeout:       c.Timeout,
		KATimeout:     c.KeepAliveTimeout,
		ProxyURL:      proxyURL,
		ProxyUsername: proxyUsername,
		ProxyPassword: proxyPassword,
		UserAgent:     userAgent,
		Headers:       utils.ParseHeaderArgs(c.Headers),
		BearerToken:   c.Token,
	}
}

// Job builds the download job for url.
func (c *Config) Job(url string) *utils.DownloadJob {
	return &utils.DownloadJob{
		JobType:          "http",
		URL:              url,
		OutputPath:       c.Output,
		Connections:      c.Connections,
		ScratchDir:       c.ScratchDir,
		PollInterval:     c.PollInterval,
		HTTPClientConfig: c.HTTPClientConfig(),
		Retry: utils.RetryConfig{
			MaxRetries:   c.MaxRetries,
			InitialDelay: c.RetryDelay,
			MaxDelay:     c.RetryMaxDelay,
		},
	}
}
