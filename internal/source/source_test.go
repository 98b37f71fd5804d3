package source

import (
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestLoadSplitsLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/prog.dawn", "function main() {\r\n    print(\"hi\");\n}\n")

	b, err := Load(fs, "/prog.dawn", Limits{})
	require.NoError(t, err)
	assert.Equal(t, []string{"function main() {", `    print("hi");`, "}"}, b.Lines())
	assert.Equal(t, "/prog.dawn", b.Path)
	assert.Zero(t, b.Dropped())
}

func TestLoadKeepsLastLineWithoutNewline(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/p", "a\n\nb")

	b, err := Load(fs, "/p", Limits{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "b"}, b.Lines())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/missing.dawn", Limits{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/missing.dawn")
}

func TestTruncationIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	long := strings.Repeat("x", DefaultMaxLineLength+40)
	writeFile(t, fs, "/long", long+"\n")

	first, err := Load(fs, "/long", Limits{})
	require.NoError(t, err)
	second, err := Load(fs, "/long", Limits{})
	require.NoError(t, err)

	require.Equal(t, 1, first.Len())
	assert.Len(t, first.Lines()[0], DefaultMaxLineLength)
	assert.Equal(t, first.Lines(), second.Lines())
	assert.Equal(t, 1, first.Truncated())
}

func TestTruncateRespectsRuneBoundary(t *testing.T) {
	assert.Equal(t, "ab", Truncate("abé", 3))
	assert.Equal(t, "abé", Truncate("abé", 4))
	assert.Equal(t, "short", Truncate("short", 10))
}

func TestCapacityBoundary(t *testing.T) {
	limits := Limits{MaxLines: 10}
	lines := make([]string, 0, 11)
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("line%d", i))
	}

	full := FromString(strings.Join(lines, "\n")+"\n", limits)
	assert.Equal(t, 10, full.Len())
	assert.Zero(t, full.Dropped())

	over := FromString(strings.Join(append(lines, "extra"), "\n")+"\n", limits)
	assert.Equal(t, 10, over.Len())
	assert.Equal(t, 1, over.Dropped())
	assert.Equal(t, full.Lines(), over.Lines())
}

func TestDefaultCapacity(t *testing.T) {
	lines := make([]string, DefaultMaxLines+1)
	for i := range lines {
		lines[i] = "x"
	}
	b := FromLines(lines, Limits{})
	assert.Equal(t, DefaultMaxLines, b.Len())
	assert.Equal(t, 1, b.Dropped())
}
