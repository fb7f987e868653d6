package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/datachat-cli/internal/ai"
	"github.com/KaramelBytes/datachat-cli/internal/parser"
	"github.com/KaramelBytes/datachat-cli/internal/utils"
)

// Global configuration structure.
type Global struct {
	// Credentials never ship in source: env, config file or .env only.
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url,omitempty"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	ServerAddr  string `mapstructure:"server_addr" yaml:"server_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	// Server sessions unused for this many minutes are dropped.
	SessionIdleMin int `mapstructure:"session_idle_min" yaml:"session_idle_min"`

	// Dataset parsing
	CSVDelimiter string `mapstructure:"csv_delimiter" yaml:"csv_delimiter,omitempty"`
	SheetName    string `mapstructure:"sheet_name" yaml:"sheet_name,omitempty"`
}

// Keys lists the settable keys in display order.
var Keys = []string{
	"api_key", "provider", "model", "base_url",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"ollama_host", "log_level", "server_addr", "max_upload_mb", "session_idle_min",
	"csv_delimiter", "sheet_name",
}

// Dir returns ~/.datachat.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".datachat"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.datachat/config.yaml.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from defaults, the config file and env.
// Precedence: env > config file > defaults. A .env file in the working
// directory is loaded into the environment first and never overrides
// variables that are already set.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DATACHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_key", "")
	v.SetDefault("provider", ai.ProviderHuggingFace)
	v.SetDefault("model", "google/flan-t5-large")
	v.SetDefault("base_url", "")
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", ai.DefaultOllamaHost)
	v.SetDefault("log_level", "info")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("max_upload_mb", 10)
	v.SetDefault("session_idle_min", 30)
	v.SetDefault("csv_delimiter", "")
	v.SetDefault("sheet_name", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// HF_TOKEN is the conventional Hugging Face variable; it ranks below
	// DATACHAT_API_KEY and above the file.
	if os.Getenv("DATACHAT_API_KEY") == "" {
		if tok := os.Getenv("HF_TOKEN"); tok != "" {
			c.APIKey = tok
		}
	}
	return &c, nil
}

// Set assigns key from its string form.
func (c *Global) Set(key, val string) error {
	atoi := func() (int, error) {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "api_key":
		c.APIKey = val
	case "provider":
		p := strings.ToLower(val)
		if _, ok := ai.GetRuntime(p, ai.RuntimeConfig{}); !ok {
			return fmt.Errorf("invalid provider: %s (use %s)", val, strings.Join(ai.Providers(), ", "))
		}
		c.Provider = p
	case "model":
		c.Model = val
	case "base_url":
		c.BaseURL = val
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi()
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi()
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi()
	case "ollama_host":
		c.OllamaHost = val
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "server_addr":
		c.ServerAddr = val
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi()
	case "session_idle_min":
		c.SessionIdleMin, err = atoi()
	case "csv_delimiter":
		if len([]rune(val)) > 1 && val != `\t` {
			return fmt.Errorf("csv_delimiter must be a single character")
		}
		c.CSVDelimiter = val
	case "sheet_name":
		c.SheetName = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

// RuntimeConfig maps the HTTP and retry settings onto an ai.RuntimeConfig.
func (c *Global) RuntimeConfig() ai.RuntimeConfig {
	host := c.OllamaHost
	if host == "" {
		host = ai.DefaultOllamaHost
	}
	return ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Host:        host,
	}
}

// ParseOptions maps the dataset settings onto parser options.
func (c *Global) ParseOptions() parser.Options {
	o := parser.DefaultOptions()
	switch d := c.CSVDelimiter; {
	case d == `\t`:
		o.Delimiter = '\t'
	case d != "":
		o.Delimiter = []rune(d)[0]
	}
	o.Sheet = c.SheetName
	return o
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Global) MaxUploadBytes() int64 {
	mb := c.MaxUploadMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) << 20
}

// SessionIdle is how long an unused server session is kept.
func (c *Global) SessionIdle() time.Duration {
	m := c.SessionIdleMin
	if m <= 0 {
		m = 30
	}
	return time.Duration(m) * time.Minute
}
