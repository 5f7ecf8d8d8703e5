// Package config loads the project configuration that drives artifact
// precompilation and restore.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file name at the project root.
const DefaultFile = "precomp.yaml"

// Toolchain names the compilers used to build for one target.
type Toolchain struct {
	CC  string `yaml:"cc"`
	CXX string `yaml:"cxx"`
	CPP string `yaml:"cpp"`
}

// Config describes one project's precompiled-artifact setup.
type Config struct {
	// App is the application name used in artifact file names.
	App string `yaml:"app"`

	// Version is the application version used in artifact file names.
	Version string `yaml:"version"`

	// NIFVersions is the set of published NIF ABI versions.
	NIFVersions []string `yaml:"nif_versions"`

	// NIFVersion is the NIF ABI version of the running host. Defaults
	// to the last entry of NIFVersions.
	NIFVersion string `yaml:"nif_version"`

	// BaseURL is the download URL template; the @{artefact_filename}
	// token is substituted with the archive basename.
	BaseURL string `yaml:"base_url"`

	// OutputDir is the live build-output directory the native library is
	// built into and restored into. Defaults to "priv".
	OutputDir string `yaml:"output_dir"`

	// LibName is the native library file expected inside OutputDir,
	// e.g. "myapp_nif.so".
	LibName string `yaml:"lib_name"`

	// Include lists archive include patterns relative to OutputDir.
	// Empty means the whole tree.
	Include []string `yaml:"include"`

	// Targets is the full published target matrix (the Fetch set).
	Targets []string `yaml:"targets"`

	// Toolchains maps each target buildable on this machine (the
	// Compile set) to its cross toolchain.
	Toolchains map[string]Toolchain `yaml:"toolchains"`

	// Compiler is the toolchain for native (current host) builds.
	Compiler Toolchain `yaml:"compiler"`

	// LedgerFile is the checksum ledger path. Defaults to
	// "checksum.json".
	LedgerFile string `yaml:"ledger_file"`

	// IgnoreUnavailable makes batch fetches skip targets whose artifact
	// is not published instead of aborting.
	IgnoreUnavailable bool `yaml:"ignore_unavailable"`

	// Clean lists files removed from OutputDir after each per-target
	// build.
	Clean []string `yaml:"clean"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.App == "":
		return fmt.Errorf("app is required")
	case c.Version == "":
		return fmt.Errorf("version is required")
	case len(c.NIFVersions) == 0:
		return fmt.Errorf("nif_versions is required")
	case c.LibName == "":
		return fmt.Errorf("lib_name is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.NIFVersion == "" {
		c.NIFVersion = c.NIFVersions[len(c.NIFVersions)-1]
	}
	if c.OutputDir == "" {
		c.OutputDir = "priv"
	}
	if c.LedgerFile == "" {
		c.LedgerFile = "checksum.json"
	}
}
