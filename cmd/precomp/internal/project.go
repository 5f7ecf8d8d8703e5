package internal

import (
	"fmt"

	"github.com/nifforge/precomp/internal/config"
	"github.com/nifforge/precomp/internal/precompile"
	"github.com/nifforge/precomp/x/ccprecomp"
)

// loadProject reads the project configuration and wires the make-driven
// precompiler into an orchestrator.
func loadProject() (*config.Config, *precompile.Orchestrator, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load project: %w", err)
	}

	toolchains := make(map[string]ccprecomp.Toolchain, len(cfg.Toolchains))
	for tgt, tc := range cfg.Toolchains {
		toolchains[tgt] = ccprecomp.Toolchain{CC: tc.CC, CXX: tc.CXX, CPP: tc.CPP}
	}
	pc := &ccprecomp.Precompiler{
		WorkDir:      ".",
		FetchTargets: cfg.Targets,
		Toolchains:   toolchains,
		Clean:        cfg.Clean,
	}

	orch, err := precompile.New(pc, precompile.Options{
		App:         cfg.App,
		Version:     cfg.Version,
		NIFVersions: cfg.NIFVersions,
		NIFVersion:  cfg.NIFVersion,
		URLTemplate: cfg.BaseURL,
		OutputDir:   cfg.OutputDir,
		LibName:     cfg.LibName,
		Include:     cfg.Include,
		LedgerPath:  cfg.LedgerFile,
		Compiler: precompile.CompilerConfig{
			CC:  cfg.Compiler.CC,
			CXX: cfg.Compiler.CXX,
			CPP: cfg.Compiler.CPP,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, orch, nil
}
