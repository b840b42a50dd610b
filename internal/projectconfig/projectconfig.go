// Package projectconfig loads the per-project unport.json file that tells
// the client runtime what domain to register and how to start the app.
package projectconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stanley-fork/unport/internal/unporterr"
)

// Config is the parsed contents of a project's unport.json.
type Config struct {
	// Domain is the project-local name; FullDomain appends ".localhost".
	Domain string `json:"domain"`

	// Start overrides the detected framework's start command, if set.
	Start string `json:"start,omitempty"`

	// PortEnv overrides the detected port-injection environment variable.
	PortEnv string `json:"portEnv,omitempty"`

	// PortArg overrides the detected port-injection CLI flag.
	PortArg string `json:"portArg,omitempty"`
}

// Load reads unport.json from dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "unport.json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, unporterr.Wrap(unporterr.KindConfigError, fmt.Errorf("read %s: %w", path, err))
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, unporterr.Wrap(unporterr.KindConfigError, fmt.Errorf("parse %s: %w", path, err))
	}
	if cfg.Domain == "" {
		return nil, unporterr.Wrap(unporterr.KindConfigError, fmt.Errorf("%s: \"domain\" is required", path))
	}

	return &cfg, nil
}

// FullDomain returns the domain with its ".localhost" suffix, e.g. "api"
// becomes "api.localhost".
func (c *Config) FullDomain() string {
	return c.Domain + ".localhost"
}
