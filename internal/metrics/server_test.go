package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dnsreflect/internal/core"
)

func TestServerExposesMetrics(t *testing.T) {
	FramesTotal.WithLabelValues("test", "tx").Inc()
	ObserveBlocklist(3, 1)

	s := NewServer("127.0.0.1:0", "")
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `dnsreflect_frames_total{action="tx",pipeline="test"}`)
	assert.Contains(t, string(body), `dnsreflect_blocklist_entries{table="addresses"} 3`)
}

func TestServerStartBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := NewServer(ln.Addr().String(), "/metrics")
	err = s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrControlPlane))
}

func TestServerStopBeforeStart(t *testing.T) {
	assert.NoError(t, NewServer(":0", "").Stop(context.Background()))
}

func TestObserveBlocklist(t *testing.T) {
	ObserveBlocklist(7, 2)
	assert.Equal(t, 7.0, testutil.ToFloat64(BlocklistEntries.WithLabelValues("addresses")))
	assert.Equal(t, 2.0, testutil.ToFloat64(BlocklistEntries.WithLabelValues("ports")))
}
