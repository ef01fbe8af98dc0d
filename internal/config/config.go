package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type TransportConfig struct {
	ChunkThreshold int           `mapstructure:"chunk_threshold"`
	ChunkSize      int           `mapstructure:"chunk_size"`
	ChunkDelay     time.Duration `mapstructure:"chunk_delay"`
}

type SandboxConfig struct {
	Backend        string        `mapstructure:"backend"` // process | docker
	PythonBin      string        `mapstructure:"python_bin"`
	Image          string        `mapstructure:"image"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxOutputBytes int           `mapstructure:"max_output_bytes"`
	MaxMemory      string        `mapstructure:"max_memory"`
	Network        bool          `mapstructure:"network"`
}

type JudgeConfig struct {
	PassToken         string        `mapstructure:"pass_token"`
	ReasonDelimiter   string        `mapstructure:"reason_delimiter"`
	DefaultBaseURL    string        `mapstructure:"default_base_url"`
	DefaultModel      string        `mapstructure:"default_model"`
	Temperature       float64       `mapstructure:"temperature"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	EvaluateMaxTokens int           `mapstructure:"evaluate_max_tokens"`
	HintMaxTokens     int           `mapstructure:"hint_max_tokens"`
	SolutionMaxTokens int           `mapstructure:"solution_max_tokens"`
	SystemPrompt      string        `mapstructure:"system_prompt"`
}

type TutorialsConfig struct {
	NotesDir string `mapstructure:"notes_dir"`
	Catalog  string `mapstructure:"catalog"`
}

type CredentialsConfig struct {
	Backend  string `mapstructure:"backend"` // sqlite | file
	DBPath   string `mapstructure:"db_path"`
	FilePath string `mapstructure:"file_path"`
}

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Config struct {
	Transport   TransportConfig   `mapstructure:"transport"`
	Sandbox     SandboxConfig     `mapstructure:"sandbox"`
	Judge       JudgeConfig       `mapstructure:"judge"`
	Tutorials   TutorialsConfig   `mapstructure:"tutorials"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Server      ServerConfig      `mapstructure:"server"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         LogConfig         `mapstructure:"log"`
}

// Load reads codetutor.yaml from path, or from the working directory and
// $HOME/.codetutor when path is empty. A missing file is not an error: the
// desktop host starts the worker without any configuration. CODETUTOR_*
// environment variables override file values (CODETUTOR_SANDBOX_TIMEOUT).
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("codetutor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.codetutor")
	}

	v.SetEnvPrefix("CODETUTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Credentials.DBPath = expandHome(cfg.Credentials.DBPath)
	cfg.Credentials.FilePath = expandHome(cfg.Credentials.FilePath)
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home := os.Getenv("HOME")
	python := "python3"
	if runtime.GOOS == "windows" {
		python = "python"
	}

	v.SetDefault("transport.chunk_threshold", 8000)
	v.SetDefault("transport.chunk_size", 8000)
	v.SetDefault("transport.chunk_delay", 10*time.Millisecond)

	v.SetDefault("sandbox.backend", "process")
	v.SetDefault("sandbox.python_bin", python)
	v.SetDefault("sandbox.image", "python:3.12-slim")
	v.SetDefault("sandbox.timeout", 10*time.Second)
	v.SetDefault("sandbox.max_output_bytes", 1<<20)
	v.SetDefault("sandbox.max_memory", "256m")
	v.SetDefault("sandbox.network", false)

	v.SetDefault("judge.pass_token", "通过")
	v.SetDefault("judge.reason_delimiter", "原因：")
	v.SetDefault("judge.default_base_url", "https://api.deepseek.com")
	v.SetDefault("judge.default_model", "deepseek-chat")
	v.SetDefault("judge.temperature", 0.7)
	v.SetDefault("judge.dial_timeout", 3*time.Second)
	v.SetDefault("judge.evaluate_max_tokens", 200)
	v.SetDefault("judge.hint_max_tokens", 100)
	v.SetDefault("judge.solution_max_tokens", 500)
	v.SetDefault("judge.system_prompt", "你是一个资深的Python编程助手")

	v.SetDefault("tutorials.notes_dir", "notes")
	v.SetDefault("tutorials.catalog", "")

	v.SetDefault("credentials.backend", "sqlite")
	v.SetDefault("credentials.db_path", filepath.Join(home, ".codetutor", "codetutor.db"))
	v.SetDefault("credentials.file_path", filepath.Join(home, ".codetutor", "credentials.toml"))

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.static_dir", "dist")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Validate rejects settings the worker cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Transport.ChunkThreshold <= 0 {
		errs = append(errs, fmt.Errorf("transport.chunk_threshold must be positive"))
	}
	if c.Transport.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("transport.chunk_size must be positive"))
	}
	if c.Transport.ChunkDelay < 0 {
		errs = append(errs, fmt.Errorf("transport.chunk_delay must not be negative"))
	}
	switch c.Sandbox.Backend {
	case "process", "docker":
	default:
		errs = append(errs, fmt.Errorf("sandbox.backend: unknown backend %q", c.Sandbox.Backend))
	}
	if c.Sandbox.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.timeout must be positive"))
	}
	switch c.Credentials.Backend {
	case "sqlite", "file":
	default:
		errs = append(errs, fmt.Errorf("credentials.backend: unknown backend %q", c.Credentials.Backend))
	}
	if c.Judge.PassToken == "" {
		errs = append(errs, fmt.Errorf("judge.pass_token must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
