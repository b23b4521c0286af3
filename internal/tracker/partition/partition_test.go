package partition

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestByteRange_SplitsIntoFixedBlocksPlusRemainder(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", strings.Repeat("x", 25))

	items, err := ByteRange{SplitSize: 10}.Partition([]string{path})
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, int64(0), items[0].Offset)
	require.Equal(t, int64(10), items[0].Length)
	require.Equal(t, int64(20), items[2].Offset)
	require.Equal(t, int64(5), items[2].Length)
	for i, it := range items {
		require.Equal(t, i, it.No)
	}
}

func TestByteRange_EmptyPartitionOnNoFiles(t *testing.T) {
	dir := t.TempDir()
	items, err := ByteRange{SplitSize: 10}.Partition([]string{filepath.Join(dir, "*.txt")})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestNLine_GroupsLinesIntoItems(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lines.txt", "l1\nl2\nl3\nl4\nl5\n")

	items, err := NLine{N: 2}.Partition([]string{path})
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, 0, items[0].No)
	require.Equal(t, 1, items[1].No)
	require.Equal(t, 2, items[2].No)
}
