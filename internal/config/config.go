package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Steps    StepsConfig    `toml:"steps"`
	Gantt    GanttConfig    `toml:"gantt"`
	Serve    ServeConfig    `toml:"serve"`
	UI       UIConfig       `toml:"ui"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// StepsConfig overrides the step template seeded into new tasks.
// An empty list keeps the built-in manufacturing routing.
type StepsConfig struct {
	DefaultNames []string `toml:"default_names"`
}

type GanttConfig struct {
	DayWidth int `toml:"day_width"`
}

type ServeConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
}

type UIConfig struct {
	ShowAssignee   bool `toml:"show_assignee"`
	ShowDueDate    bool `toml:"show_due_date"`
	ShowNotes      bool `toml:"show_notes"`
	WeekendShading bool `toml:"weekend_shading"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the optional logfmt file sink used in dev mode.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Steps: StepsConfig{
			DefaultNames: nil,
		},
		Gantt: GanttConfig{
			DayWidth: 4,
		},
		Serve: ServeConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
		},
		UI: UIConfig{
			ShowAssignee:   true,
			ShowDueDate:    true,
			ShowNotes:      false,
			WeekendShading: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
			},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.applyEnv()
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) > 0 {
		if err := toml.Unmarshal(content, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode toml: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers VERKSTAD_* environment overrides on top of file values.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("VERKSTAD_DB_PATH")); v != "" {
		c.Database.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("VERKSTAD_HTTP_BIND")); v != "" {
		c.Serve.HTTPBind = v
	}
	if v := strings.TrimSpace(os.Getenv("VERKSTAD_API_ENDPOINT")); v != "" {
		c.Serve.APIEndpoint = v
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if c.Gantt.DayWidth < 0 {
		return fmt.Errorf("gantt.day_width must be >= 0, got %d", c.Gantt.DayWidth)
	}

	seenStep := map[string]struct{}{}
	for idx, name := range c.Steps.DefaultNames {
		n := strings.TrimSpace(name)
		if n == "" {
			return fmt.Errorf("steps.default_names[%d] is empty", idx)
		}
		key := strings.ToLower(n)
		if _, ok := seenStep[key]; ok {
			return fmt.Errorf("steps.default_names[%d] is duplicated: %s", idx, n)
		}
		seenStep[key] = struct{}{}
	}

	if strings.TrimSpace(c.Serve.HTTPBind) == "" {
		return errors.New("serve.http_bind is required")
	}

	if strings.TrimSpace(c.Logging.Level) == "" {
		return errors.New("logging.level is required")
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
