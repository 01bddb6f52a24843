package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `{
	"database": {"host": "localhost", "user": "u", "password": "p", "dbname": "d"},
	"ai": {"provider": "openai", "embed_model": "text-embedding-3-small", "data": {"api_key": "k"}}
}`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, 1536, cfg.AI.Dimensions)
	require.Equal(t, 300, cfg.Chunker.ChunkSize)
	require.Equal(t, 50, cfg.Chunker.Overlap)
	require.Equal(t, 80, cfg.Chunker.MinChunkSize)
	require.Equal(t, 16, cfg.Loader.BatchSize)
	require.Equal(t, 3, cfg.Loader.MaxAttempts)
	require.Equal(t, "local", cfg.Loader.DeadLetter.Type)
}

func TestLoadExplicitZeroOverlapAndMinChunkSize(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"database": {"host": "localhost", "user": "u", "password": "p", "dbname": "d"},
		"ai": {"provider": "openai", "embed_model": "m", "data": {"api_key": "k"}},
		"chunker": {"chunk_size": 200, "overlap": 0, "min_chunk_size": 0}
	}`))
	require.NoError(t, err)
	require.Equal(t, 200, cfg.Chunker.ChunkSize)
	require.Zero(t, cfg.Chunker.Overlap)
	require.Zero(t, cfg.Chunker.MinChunkSize)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing provider", `{
			"database": {"host": "h"},
			"ai": {"embed_model": "m", "data": {"api_key": "k"}}
		}`},
		{"missing ai data", `{
			"database": {"host": "h"},
			"ai": {"provider": "openai", "embed_model": "m"}
		}`},
		{"missing embed model", `{
			"database": {"host": "h"},
			"ai": {"provider": "openai", "data": {"api_key": "k"}}
		}`},
		{"missing database", `{
			"ai": {"provider": "openai", "embed_model": "m", "data": {"api_key": "k"}}
		}`},
		{"negative overlap", `{
			"database": {"host": "h"},
			"ai": {"provider": "openai", "embed_model": "m", "data": {"api_key": "k"}},
			"chunker": {"overlap": -1}
		}`},
		{"zero chunk size", `{
			"database": {"host": "h"},
			"ai": {"provider": "openai", "embed_model": "m", "data": {"api_key": "k"}},
			"chunker": {"chunk_size": 0}
		}`},
		{"overlap not smaller than chunk size", `{
			"database": {"host": "h"},
			"ai": {"provider": "openai", "embed_model": "m", "data": {"api_key": "k"}},
			"chunker": {"chunk_size": 100, "overlap": 100}
		}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
		})
	}
}
