package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	FramesCapturedTotal.WithLabelValues("test0").Inc()
	SignatureMatchesTotal.WithLabelValues("critical").Inc()

	srv := httptest.NewServer(NewServer(":0", "").Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `netinspect_frames_captured_total{interface="test0"}`)
	assert.Contains(t, string(body), `netinspect_signature_matches_total{severity="critical"}`)
}

func TestStopWithoutStart(t *testing.T) {
	assert.NoError(t, NewServer(":0", "/m").Stop(t.Context()))
}
