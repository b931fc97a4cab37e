package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/coachgrid/tabledit/internal/config"
)

const wordsYAML = `
name: words
columns:
  - id: word
    type: text
    validate: required
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.GRPC.Addr = "127.0.0.1:0"
	cfg.Shutdown.DrainTimeout = time.Second

	defs := filepath.Join(dir, "tables")
	require.NoError(t, os.MkdirAll(defs, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(defs, "words.yaml"), []byte(wordsYAML), 0644))
	return cfg
}

func TestApp_StartServeStop(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	err = a.Start(context.Background())
	assert.Error(t, err, "second Start should fail")

	resp, err := http.Get("http://" + a.HTTPAddr() + "/v1/tables")
	require.NoError(t, err)
	var body struct {
		Tables []string `json:"tables"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, []string{"words"}, body.Tables)

	resp, err = http.Post("http://"+a.HTTPAddr()+"/v1/tables/words/edit-sessions", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	conn, err := grpc.NewClient(a.GRPCAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: "tabledit.table.words"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hc.GetStatus())

	require.NoError(t, a.Stop())
	assert.NoError(t, a.Stop(), "Stop is idempotent")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Type = "tape"
	_, err := New(cfg)
	assert.Error(t, err)
}
