package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Gauges(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.SetEpoch(3)
	m.SetEpochLoss(0.75)
	m.SetBestScore(0.9)

	require.Equal(t, 3.0, testutil.ToFloat64(m.epoch))
	require.Equal(t, 0.75, testutil.ToFloat64(m.epochLoss))
	require.Equal(t, 0.9, testutil.ToFloat64(m.bestScore))
}

func TestMonitor_CollectsProcessInfo(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.collectProcessInfo()
	// собственный процесс всегда потребляет хоть сколько-то памяти
	require.Greater(t, testutil.ToFloat64(m.memUsage), 0.0)
}
