package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tari-project/tari-core/utils/unittest"
)

func TestServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewChainCollector(registry).ChainTip(12)

	server := NewServer(unittest.Logger(), 0, registry)
	addr, err := server.Start()
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, server.Stop())
	}()

	port := addr[strings.LastIndex(addr, ":"):]
	resp, err := http.Get("http://127.0.0.1" + port + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tari_chain_tip_height 12")

	health, err := http.Get("http://127.0.0.1" + port + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	post, err := http.Post("http://127.0.0.1"+port+"/metrics", "text/plain", nil)
	require.NoError(t, err)
	defer post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}
