package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xyproto/dawnc/internal/build"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const helloProgram = `#include dawnlang.io
function main() {
    print("Hello World");
    int x = 42;
    print.int(x);
}
`

const helloC = "#include<stdio.h>\nint main(){printf(\"Hello World\");int x=42;printf(\"%d\\n\",x);}"

func runCLI(t *testing.T, fs afero.Fs, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, fs, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func programFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "hello.dawn", []byte(helloProgram), 0o644))
	return fs
}

func TestEmit(t *testing.T) {
	code, stdout, _ := runCLI(t, programFs(t), "emit", "hello.dawn")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, helloC+"\n", stdout)
}

func TestTokens(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "a.dawn", []byte("a = 1;\n"), 0o644))

	code, stdout, _ := runCLI(t, fs, "tokens", "a.dawn")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "a\n=\n1\n;\n", stdout)
}

func TestDebugFlagPrintsTokens(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "a.dawn", []byte("a = 1;\n"), 0o644))

	code, stdout, _ := runCLI(t, fs, "-d", "emit", "a.dawn")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(stdout, "Tokenization complete\na\n=\n1\n;\nCompiling\n"), stdout)
}

func TestMissingInputExitsWithFailure(t *testing.T) {
	code, stdout, stderr := runCLI(t, afero.NewMemMapFs(), "emit", "missing.dawn")
	assert.Equal(t, exitFailure, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "ERROR CODE: r100")
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"build without output", []string{"build", "in.dawn"}, "usage: dawnc build"},
		{"unknown command", []string{"biuld"}, "did you mean 'build'?"},
		{"unknown flag", []string{"--nope"}, "unknown flag"},
		{"debug and quiet", []string{"-d", "-q", "emit", "x"}, "cannot be combined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, afero.NewMemMapFs(), tt.args...)
			assert.Equal(t, exitUsage, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestVersionAndHelp(t *testing.T) {
	code, stdout, _ := runCLI(t, afero.NewMemMapFs(), "version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, versionString+"\n", stdout)

	code, stdout, _ = runCLI(t, afero.NewMemMapFs(), "--version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, versionString+"\n", stdout)

	code, stdout, _ = runCLI(t, afero.NewMemMapFs())
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "USAGE:")
}

func TestModules(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "dawn.yml", []byte("includes:\n  - {module: dawnlang.math, header: math.h}\n"), 0o644))

	code, stdout, _ := runCLI(t, fs, "modules")
	assert.Equal(t, exitOK, code)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "dawnlang.io"))
	assert.Contains(t, lines[0], "<stdio.h>")
	assert.True(t, strings.HasPrefix(lines[1], "dawnlang.data.types"))
	assert.Contains(t, lines[2], "<math.h>")
	assert.Contains(t, lines[2], "config")
}

func TestBadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "dawn.yml", []byte("colour: blue\n"), 0o644))
	code, _, _ := runCLI(t, fs, "version")
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, afero.NewMemMapFs(), "-c", "missing.yml", "version")
	assert.Equal(t, exitUsage, code)
}

func TestLegacyArgs(t *testing.T) {
	tests := []struct {
		in, want []string
	}{
		{[]string{"-d", "-b", "in", "out"}, []string{"-d", "build", "in", "out"}},
		{[]string{"-br", "in", "out"}, []string{"run", "in", "out"}},
		{[]string{"run", "in", "out", "--", "-b"}, []string{"run", "in", "out", "--", "-b"}},
		{[]string{"emit", "x"}, []string{"emit", "x"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, legacyArgs(tt.in))
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "dawn.yml", []byte("limits: {tokens: 3}\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "a.dawn", []byte("a b c d e\n"), 0o644))

	_, stdout, _ := runCLI(t, fs, "tokens", "a.dawn")
	assert.Equal(t, "a\nb\nc\n", stdout)

	t.Setenv("DAWN_MAX_TOKENS", "4")
	_, stdout, _ = runCLI(t, fs, "tokens", "a.dawn")
	assert.Equal(t, "a\nb\nc\nd\n", stdout)

	_, stdout, _ = runCLI(t, fs, "--max-tokens", "1", "tokens", "a.dawn")
	assert.Equal(t, "a\n", stdout)
}

// TestBuildWithCompiler runs the whole chain against a real C compiler.
func TestBuildWithCompiler(t *testing.T) {
	for _, tool := range []string{"gcc", "g++"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	require.NoError(t, os.WriteFile("hello.dawn", []byte(helloProgram), 0o644))

	out := filepath.Join(dir, "hello")
	code, _, stderr := runCLI(t, afero.NewOsFs(), "-q", "-b", "hello.dawn", out)
	require.Equal(t, exitOK, code, stderr)

	generated, err := os.ReadFile(build.DefaultIntermediate)
	require.NoError(t, err)
	assert.Equal(t, helloC, string(generated))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	got, err := exec.CommandContext(ctx, out).Output()
	require.NoError(t, err)
	assert.Equal(t, "Hello World42\n", string(got))
}
