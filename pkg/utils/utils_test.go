package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	tests := map[HashAlgorithm]string{
		SHA256: "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		SHA1:   "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d",
		MD5:    "5d41402abc4b2a76b9719d911017c592",
	}
	for algo, want := range tests {
		t.Run(string(algo), func(t *testing.T) {
			got, err := FileHash(path, algo)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	sum, err := FileHash(path, SHA512)
	require.NoError(t, err)
	assert.Len(t, sum, 128)
	sum, err = FileHash(path, SHA384)
	require.NoError(t, err)
	assert.Len(t, sum, 96)

	_, err = FileHash(filepath.Join(t.TempDir(), "missing"), SHA256)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseHashAlgorithm(t *testing.T) {
	for in, want := range map[string]HashAlgorithm{
		"":       SHA256,
		"sha256": SHA256,
		"SHA-1":  SHA1,
		"sha384": SHA384,
		"Sha512": SHA512,
		" md5 ":  MD5,
	} {
		got, err := ParseHashAlgorithm(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseHashAlgorithm("crc32")
	assert.Error(t, err)
}

func TestHashEqual(t *testing.T) {
	assert.True(t, HashEqual("ABCDEF", "abcdef "))
	assert.False(t, HashEqual("abcdef", "abcdee"))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "https___example.com_download_id=1", SanitizeFileName("https://example.com/download?id=1"))
	assert.Equal(t, "a_b_c_d_e_f", SanitizeFileName("a<b>c|d\"e\x01f"))
	assert.Equal(t, "plain.msi", SanitizeFileName("plain.msi"))
}

func TestTempLogPath(t *testing.T) {
	target := filepath.Join(t.TempDir(), "My App.msi")

	first, err := TempLogPath(target)
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(first) })
	second, err := TempLogPath(target)
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(second) })

	assert.NotEqual(t, first, second)
	for _, p := range []string{first, second} {
		assert.Equal(t, filepath.Clean(os.TempDir()), filepath.Dir(p))
		assert.True(t, strings.HasPrefix(filepath.Base(p), "My App_"), p)
		assert.Equal(t, ".log", filepath.Ext(p))
		assert.FileExists(t, p)
	}
}

func TestWriteOutput(t *testing.T) {
	v := map[string]interface{}{"ProductName": "Test", "Log": LiteralString("line1\nline2")}

	var y bytes.Buffer
	require.NoError(t, WriteOutput(&y, FormatYAML, v))
	assert.Contains(t, y.String(), "Log: |-\n  line1\n  line2")
	assert.Contains(t, y.String(), "ProductName: Test")

	var j bytes.Buffer
	require.NoError(t, WriteOutput(&j, FormatJSON, v))
	assert.Contains(t, j.String(), `"ProductName": "Test"`)

	_, err := ParseFormat("xml")
	assert.Error(t, err)
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
}
