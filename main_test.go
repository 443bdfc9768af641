package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/BRO3886/content-indexer/internal/config"
	"github.com/BRO3886/content-indexer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writtenAction struct {
	Op   string         `json:"op"`
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

func TestRunDryRun(t *testing.T) {
	cfg, err := config.Load(config.DefaultPath)
	require.NoError(t, err)

	streamPath = "stream.jsonl"
	fixturesPath = "configs/fixtures.yaml"
	outPath = filepath.Join(t.TempDir(), "out.jsonl")

	require.NoError(t, runDryRun(context.Background(), cfg, slog.Default()))

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	actions := map[string]writtenAction{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var a writtenAction
		require.NoError(t, json.Unmarshal(sc.Bytes(), &a))
		actions[a.ID] = a
	}
	require.NoError(t, sc.Err())

	home := actions["5b1c0e7a-6c1d-4f3e-9a2b-1c0d9e8f7a6b"]
	assert.Equal(t, "index", home.Op)
	assert.Equal(t, `["/media/hero.jpg"]`, home.Data["hero"])
	assert.Equal(t, "delete", actions["5b1c0e7a-6c1d-4f3e-9a2b-1c0d9e8f7a6b_en-us"].Op)

	launch := actions["9e8d7c6b-5a49-4382-a1b0-c9d8e7f6a5b4_da-dk"]
	assert.Equal(t, "index", launch.Op)
	assert.Equal(t, "Vi lancerede", launch.Data["title"])
	assert.Equal(t, "Home", launch.Data["related"])
	assert.Equal(t, "news,launch", launch.Data["tags"])

	// the deleted page had no properties left but all its ids go
	for _, id := range []string{
		"0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d",
		"0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d_en-us",
		"0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d_da-dk",
	} {
		assert.Equal(t, "delete", actions[id].Op, id)
	}
}

func TestReadStream_SkipsInvalidLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.jsonl")
	data := `{"op":"u","ts_ms":1700000000000,"after":{"key":"k1","name":"One"}}

{not json
{"op":"u","ts_ms":1700000000000,"after":{"key":""}}
{"op":"u","ts_ms":99999999999999,"after":{"key":"k2"}}
{"op":"d","ts_ms":1700000000000,"before":{"key":"k3"}}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	var keys []string
	n, err := readStream(context.Background(), path, slog.Default(), func(_ []byte, event types.Event) error {
		keys = append(keys, event.Subject().Key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"k1", "k3"}, keys)
}
