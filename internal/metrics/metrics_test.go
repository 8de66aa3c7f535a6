package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_CommandSettled(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.CommandSettled("sign_in", "ok", 120*time.Millisecond)
	p.CommandSettled("sign_in", "ok", 80*time.Millisecond)
	p.CommandSettled("sign_in", "invalid_credentials", 50*time.Millisecond)
	p.CommandSettled("sign_out", "ok", 10*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(p.commands.WithLabelValues("sign_in", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.commands.WithLabelValues("sign_in", "invalid_credentials")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.commands.WithLabelValues("sign_out", "ok")))
	require.Equal(t, 2, testutil.CollectAndCount(p.duration))
}

func TestPrometheus_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "[NewPrometheus]")
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	require.NotPanics(t, func() { r.CommandSettled("restore", "ok", time.Second) })
}
