package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Workspace environment variables, checked in order when the config file
// leaves workspace.root empty.
var WorkspaceEnvVars = []string{"RESEARCH_WORKSPACE", "COWORK_WORKSPACE"}

// DefaultWorkspaceDir is the fallback workspace, relative to the home directory.
const DefaultWorkspaceDir = "Research"

// DefaultDBName is the database file created inside the workspace when
// sqlite.path is empty.
const DefaultDBName = "research.db"

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ResolvePaths fills the workspace root and database path. The root is taken
// from the config, then the first set variable of WorkspaceEnvVars, then
// {home}/Research. A leading "~" is expanded and both paths are made
// absolute. It runs once at startup; nothing reads the environment later.
func (c *Config) ResolvePaths(lookup func(string) (string, bool), home string) error {
	if c.Workspace.Root == "" {
		for _, key := range WorkspaceEnvVars {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				c.Workspace.Root = v
				break
			}
		}
	}
	if c.Workspace.Root == "" {
		if home == "" {
			return errors.New("workspace: root not configured and home directory unknown")
		}
		c.Workspace.Root = filepath.Join(home, DefaultWorkspaceDir)
	}

	root, err := absPath(c.Workspace.Root, home)
	if err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	c.Workspace.Root = root

	if c.SQLite.Path == "" {
		c.SQLite.Path = filepath.Join(root, DefaultDBName)
	}
	dbPath, err := absPath(c.SQLite.Path, home)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	c.SQLite.Path = dbPath
	return nil
}

func absPath(p, home string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home == "" {
			return "", fmt.Errorf("cannot expand %q without a home directory", p)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// WorkspaceConfig holds the research workspace location. Empty means
// "resolve from the environment".
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.By(noNUL)),
	)
}

// SQLiteConfig holds SQLite database configuration. Empty Path means
// {workspace}/research.db.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration for the REST surface.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

func noNUL(value any) error {
	s, _ := value.(string)
	if strings.ContainsRune(s, 0) {
		return errors.New("must not contain NUL")
	}
	return nil
}
