package precompile

import (
	"context"
	"os"
	"path/filepath"
)

// fakePrecompiler is a Precompiler whose every behavior can be swapped
// per test. The zero value enumerates no targets and builds nothing.
type fakePrecompiler struct {
	targets    func(op Op) ([]string, error)
	current    func() (string, error)
	build      func(ctx context.Context, cc CompilerConfig) error
	precompile func(ctx context.Context, target string, cc CompilerConfig) error
	hooks      Hooks
}

func (f *fakePrecompiler) AllSupportedTargets(op Op) ([]string, error) {
	if f.targets == nil {
		return nil, nil
	}
	return f.targets(op)
}

func (f *fakePrecompiler) CurrentTarget() (string, error) {
	if f.current == nil {
		return "a-b-c", nil
	}
	return f.current()
}

func (f *fakePrecompiler) BuildNative(ctx context.Context, cc CompilerConfig) error {
	if f.build == nil {
		return nil
	}
	return f.build(ctx, cc)
}

func (f *fakePrecompiler) PrecompileTarget(ctx context.Context, target string, cc CompilerConfig) error {
	if f.precompile == nil {
		return nil
	}
	return f.precompile(ctx, target, cc)
}

func (f *fakePrecompiler) Hooks() Hooks { return f.hooks }

// writeOutput drops a file into dir, creating parents. Used as the body
// of fake build steps.
func writeOutput(dir, name, content string) error {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
