package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestFetchTotal_CountsByResult(t *testing.T) {
	before := testutil.ToFloat64(FetchTotal.WithLabelValues("located"))
	FetchTotal.WithLabelValues("located").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FetchTotal.WithLabelValues("located")))
}

func TestSessionsActive_TracksTransports(t *testing.T) {
	SessionsActive.WithLabelValues("tcp").Set(0)
	SessionsActive.WithLabelValues("tcp").Inc()
	SessionsActive.WithLabelValues("tcp").Inc()
	SessionsActive.WithLabelValues("tcp").Dec()
	assert.Equal(t, float64(1), testutil.ToFloat64(SessionsActive.WithLabelValues("tcp")))
}
