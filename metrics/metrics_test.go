// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopMetrics(t *testing.T) {
	// before initialization every meter is a silent no-op
	Counter("noop_count").Add(1)
	Gauge("noop_gauge").Set(42)
	Histogram("noop_hist", nil).Observe(7)
	CounterVec("noop_vec", []string{"op"}).AddWithLabel(1, map[string]string{"op": "stake"})

	assert.Nil(t, HTTPHandler())
}

func TestPrometheusMetrics(t *testing.T) {
	InitializePrometheusMetrics()

	Counter("api_request_count").Add(3)
	Gauge("engine_reward_sources").Set(2)
	Histogram("api_request_duration_ms", BucketHTTPReqs).Observe(15)
	CounterVec("engine_operation_count", []string{"op"}).AddWithLabel(1, map[string]string{"op": "stake"})

	server := httptest.NewServer(HTTPHandler())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "multifarm_metrics_api_request_count 3"))
}
