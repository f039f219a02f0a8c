package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashReaderKnownDigest(t *testing.T) {
	sum, err := HashReader(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	big := bytes.Repeat([]byte("hazard"), 3*hashChunkSize/5)
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	require.NoError(t, os.WriteFile(a, big, 0o644))
	require.NoError(t, os.WriteFile(b, append(big[:len(big)-1:len(big)-1], 'X'), 0o644))

	first, err := HashFile(a)
	require.NoError(t, err)
	second, err := HashFile(a)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	want := sha256.Sum256(big)
	assert.Equal(t, hex.EncodeToString(want[:]), first)

	other, err := HashFile(b)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "nope.jpg"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
