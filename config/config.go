package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the top-level site configuration for contentsync.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
}

// BackendConfig describes the Git hosting backend holding the content.
type BackendConfig struct {
	Name         string `yaml:"name"`          // "gitea", "gitlab", ...
	Repo         string `yaml:"repo"`          // "owner/repo"
	Branch       string `yaml:"branch"`        // optional; default branch is resolved when empty
	BaseURL      string `yaml:"base_url"`      // server root for self-hosted instances
	AuthEndpoint string `yaml:"auth_endpoint"` // optional OAuth endpoint override
	AppID        string `yaml:"app_id"`        // OAuth client ID
	APIRoot      string `yaml:"api_root"`      // REST API root; normalized to its origin
	Token        string `yaml:"token"`         // inline, ${ENV_VAR}, or file path (CLI use)
}

// Owner returns the owner half of the "owner/repo" pair.
func (b BackendConfig) Owner() string {
	owner, _, _ := strings.Cut(b.Repo, "/")
	return owner
}

// RepoName returns the repository half of the "owner/repo" pair.
func (b BackendConfig) RepoName() string {
	_, repo, _ := strings.Cut(b.Repo, "/")
	return repo
}

// envVarPattern matches ${VAR_NAME} placeholders.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// Load reads and parses a configuration file, expanding environment
// variables and resolving token file paths.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var cfg Config
	if unmarshalErr := yaml.Unmarshal(data, &cfg); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", unmarshalErr)
	}

	cfg.Backend.Token = resolveToken(cfg.Backend.Token)

	if validateErr := validate(&cfg); validateErr != nil {
		return nil, validateErr
	}

	return &cfg, nil
}

// FindConfigFile searches for a configuration file in standard locations.
// Returns the path to the first file found or an error if none is found.
func FindConfigFile() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}

	locations := []string{
		".",
		".config",
		"configs",
	}
	if homeDir != "" {
		locations = append(
			locations,
			homeDir,
			filepath.Join(homeDir, ".config"),
		)
	}

	patterns := []string{
		".contentsync.yaml",
		".contentsync.yml",
		"contentsync.yaml",
		"contentsync.yml",
	}

	for _, loc := range locations {
		for _, pat := range patterns {
			p := filepath.Join(loc, pat)
			if _, statErr := os.Stat(p); statErr == nil {
				return p, nil
			}
		}
	}

	return "", errors.New("config file not found in default locations")
}

// resolveToken expands environment variable references (${VAR}) and, if the
// resulting string is a path to an existing file, reads the token from the file.
func resolveToken(raw string) string {
	if raw == "" {
		return raw
	}

	resolved := envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		logger.Warnf("Environment variable %q is not set", varName)
		return ""
	})

	if _, statErr := os.Stat(resolved); statErr == nil {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			logger.Warnf("Failed to read token file %q: %v", resolved, readErr)
			return resolved
		}
		logger.Infof("Read token from file %q", resolved)
		return strings.TrimSpace(string(data))
	}

	return resolved
}

// validate checks for required configuration values.
func validate(cfg *Config) error {
	if cfg.Backend.Name == "" {
		return errors.New("backend.name is required")
	}
	if cfg.Backend.Repo == "" {
		return errors.New("backend.repo is required")
	}
	if !strings.Contains(cfg.Backend.Repo, "/") {
		return fmt.Errorf("backend.repo must be \"owner/repo\", got %q", cfg.Backend.Repo)
	}
	return nil
}
