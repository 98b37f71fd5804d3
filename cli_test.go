package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xyproto/dawnc/internal/build"
	"github.com/xyproto/dawnc/internal/engine"
)

// echoBackend writes the intermediate text as the "executable".
type echoBackend struct {
	fs       afero.Fs
	artifact string
	fail     bool
	builds   atomic.Int32
}

func (b *echoBackend) Artifact() string { return b.artifact }

func (b *echoBackend) Compile(_ context.Context, intermediate string) (string, error) {
	b.builds.Add(1)
	if b.fail {
		return "", &build.ToolchainError{Command: "cc", Args: []string{intermediate}, ExitCode: 1}
	}
	data, err := afero.ReadFile(b.fs, intermediate)
	if err != nil {
		return "", err
	}
	return b.artifact, afero.WriteFile(b.fs, b.artifact, data, 0o755)
}

func newCommandContext(fs afero.Fs, backend build.Backend, args ...string) (*CommandContext, *bytes.Buffer) {
	var out bytes.Buffer
	return &CommandContext{
		Ctx:     context.Background(),
		Args:    args,
		Config:  DefaultConfig(),
		Fs:      fs,
		Backend: backend,
		Log:     zap.NewNop(),
		Stdout:  &out,
		Stderr:  &out,
	}, &out
}

func TestCmdBuild(t *testing.T) {
	fs := programFs(t)
	backend := &echoBackend{fs: fs, artifact: "a.out"}
	cc, _ := newCommandContext(fs, backend, "build", "hello.dawn", "hello")

	require.NoError(t, RunCLI(cc))
	got, err := afero.ReadFile(fs, "hello")
	require.NoError(t, err)
	assert.Equal(t, helloC, string(got))

	intermediate, err := afero.ReadFile(fs, build.DefaultIntermediate)
	require.NoError(t, err)
	assert.Equal(t, helloC, string(intermediate))
}

func TestCmdBuildClean(t *testing.T) {
	fs := programFs(t)
	cc, _ := newCommandContext(fs, &echoBackend{fs: fs, artifact: "a.out"}, "build", "hello.dawn", "hello")
	cc.Config.Clean = true
	cc.Config.Intermediate = "gen.c"

	require.NoError(t, RunCLI(cc))
	exists, _ := afero.Exists(fs, "gen.c")
	assert.False(t, exists)
}

func TestCmdBuildFailure(t *testing.T) {
	fs := programFs(t)
	require.NoError(t, afero.WriteFile(fs, "hello", []byte("previous"), 0o755))
	cc, _ := newCommandContext(fs, &echoBackend{fs: fs, artifact: "a.out", fail: true}, "build", "hello.dawn", "hello")

	err := RunCLI(cc)
	require.Error(t, err)
	var stageErr *engine.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "cf200", stageErr.Code())
	assert.Equal(t, exitFailure, exitCode(zap.NewNop(), &bytes.Buffer{}, err))

	exists, _ := afero.Exists(fs, "hello")
	assert.False(t, exists, "no stale executable after a failed build")
}

func TestDiagnosticsInDebugMode(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "d.dawn", []byte("#include dawnlang.ioo\n"), 0o644))
	cc, out := newCommandContext(fs, nil, "emit", "d.dawn")
	cc.Config.Debug = true

	require.NoError(t, RunCLI(cc))
	assert.Contains(t, out.String(), `warning: unknown module "dawnlang.ioo", did you mean "dawnlang.io"?`)
}

func TestExitStatusPassesThrough(t *testing.T) {
	assert.Equal(t, 7, exitCode(zap.NewNop(), &bytes.Buffer{}, &exitStatusError{code: 7}))
	assert.Equal(t, exitUsage, exitCode(zap.NewNop(), &bytes.Buffer{}, usagef("bad")))
	assert.Equal(t, exitOK, exitCode(zap.NewNop(), &bytes.Buffer{}, nil))
}

func TestCmdWatchRebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "hello.dawn")
	output := filepath.Join(dir, "hello")
	require.NoError(t, os.WriteFile(input, []byte("int x = 1;\n"), 0o644))

	fs := afero.NewOsFs()
	backend := &echoBackend{fs: fs, artifact: filepath.Join(dir, "a.out")}
	cc, _ := newCommandContext(fs, backend, "watch", input, output)
	cc.Config.Intermediate = filepath.Join(dir, "Main.cpp")

	ctx, cancel := context.WithCancel(context.Background())
	cc.Ctx = ctx
	done := make(chan error, 1)
	go func() { done <- RunCLI(cc) }()

	require.Eventually(t, func() bool { return backend.builds.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	// The watch may start after the first write, so keep touching the file
	// at intervals longer than the debounce delay until a rebuild lands.
	require.Eventually(t, func() bool {
		got, err := os.ReadFile(output)
		if err == nil && string(got) == "int x=2;" {
			return true
		}
		later := time.Now().Add(time.Second)
		_ = os.WriteFile(input, []byte("int x = 2;\n"), 0o644)
		_ = os.Chtimes(input, later, later)
		return false
	}, 15*time.Second, 700*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestCmdWatchInitialBuildFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	cc, _ := newCommandContext(fs, &echoBackend{fs: fs, artifact: "a.out"}, "watch", "missing.dawn", "out")
	err := RunCLI(cc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial build failed")
}
