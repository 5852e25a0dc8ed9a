package writer

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpbo/pbo/pbo/format"
)

// writeTree lays out files under a fresh temp dir and returns its path.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// parseHeaders walks the header table of raw archive bytes and returns the
// entries plus the offset of the first payload byte.
func parseHeaders(t *testing.T, data []byte) ([]format.Entry, int) {
	t.Helper()
	require.GreaterOrEqual(t, len(data), len(format.PREAMBLE_BYTES))
	require.Equal(t, format.PREAMBLE_BYTES, data[:len(format.PREAMBLE_BYTES)])

	cursor := len(format.PREAMBLE_BYTES)
	var entries []format.Entry
	for {
		entry, next, ok := format.DecodeEntry(data, cursor)
		require.True(t, ok, "header table ended without a terminator")
		cursor = next
		if entry.IsTerminator() {
			return entries, cursor
		}
		entries = append(entries, entry)
	}
}

func TestCreateLayout(t *testing.T) {
	source := writeTree(t, map[string]string{
		"config.cpp":          "class CfgPatches {};",
		"scripts/init.sqf":    "hint \"hello\";",
		"textures/ground.paa": "PAADATA",
	})
	out := filepath.Join(t.TempDir(), "mod.pbo")

	count, err := Create(context.Background(), source, out, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	entries, payload := parseHeaders(t, data)
	require.Len(t, entries, 3)

	// WalkDir enumerates lexically, so header order is fixed.
	assert.Equal(t, "config.cpp", entries[0].Name)
	assert.Equal(t, `scripts\init.sqf`, entries[1].Name)
	assert.Equal(t, `textures\ground.paa`, entries[2].Name)

	cursor := payload
	for _, entry := range entries {
		assert.Equal(t, format.PACKING_METHOD_STORED, entry.Method)
		assert.Equal(t, entry.DataSize, entry.OriginalSize)
		assert.Zero(t, entry.Reserved)
		cursor += int(entry.DataSize)
	}
	assert.Equal(t, []byte("class CfgPatches {};"), data[payload:payload+int(entries[0].DataSize)])

	// Payload is contiguous and followed only by the zero checksum trailer.
	require.Equal(t, cursor+format.CHECKSUM_SIZE, len(data))
	for _, b := range data[cursor:] {
		require.Zero(t, b)
	}
}

func TestCreateTimestamps(t *testing.T) {
	source := writeTree(t, map[string]string{"a.txt": "aaa"})
	stamp := time.Date(2019, 4, 12, 8, 30, 15, 500_000_000, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(source, "a.txt"), stamp, stamp))

	out := filepath.Join(t.TempDir(), "a.pbo")
	_, err := Create(context.Background(), source, out, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	entries, _ := parseHeaders(t, data)
	require.Len(t, entries, 1)

	// Sub-second precision is dropped.
	assert.Equal(t, uint32(stamp.Unix()), entries[0].Timestamp)
}

func TestCreateEmptySource(t *testing.T) {
	source := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(source, "only", "dirs"), 0o755))
	out := filepath.Join(t.TempDir(), "empty.pbo")

	_, err := Create(context.Background(), source, out, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptySource))

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no archive should be created for an empty source")
}

func TestCreateMissingSource(t *testing.T) {
	out := filepath.Join(t.TempDir(), "x.pbo")
	_, err := Create(context.Background(), filepath.Join(t.TempDir(), "nope"), out, nil)
	assert.Error(t, err)
}

var progressRe = regexp.MustCompile(`^Packing: (.+) \((\d+)%\)$`)

func TestCreateProgress(t *testing.T) {
	source := writeTree(t, map[string]string{
		"a.txt": "1", "b.txt": "2", "c.txt": "3", "d.txt": "4",
	})
	out := filepath.Join(t.TempDir(), "p.pbo")

	var messages []string
	count, err := Create(context.Background(), source, out, func(message string) {
		messages = append(messages, message)
	})
	require.NoError(t, err)
	require.Len(t, messages, count)

	last := -1
	for _, message := range messages {
		m := progressRe.FindStringSubmatch(message)
		require.NotNil(t, m, "malformed progress message %q", message)
		pct, err := strconv.Atoi(m[2])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, pct, last, "progress went backwards")
		assert.Less(t, pct, 100)
		last = pct
	}
	assert.Equal(t, 0, func() int {
		m := progressRe.FindStringSubmatch(messages[0])
		pct, _ := strconv.Atoi(m[2])
		return pct
	}(), "first file must report 0%")
}

func TestCreateCancelled(t *testing.T) {
	source := writeTree(t, map[string]string{"a.txt": "1"})
	out := filepath.Join(t.TempDir(), "c.pbo")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Create(ctx, source, out, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}
