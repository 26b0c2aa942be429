package main

import (
	"context"
	"testing"
	"time"

	"github.com/glucogate/backend/memory"
	"github.com/glucogate/config"
	"github.com/glucogate/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics(t *testing.T) {
	reporter, handler, collector := initMetrics(config.MetricsConfig{Backend: "prometheus"})
	assert.IsType(t, &metrics.PrometheusReporter{}, reporter)
	assert.NotNil(t, handler)
	assert.Nil(t, collector)

	reporter, handler, collector = initMetrics(config.MetricsConfig{Backend: "memory"})
	assert.IsType(t, &metrics.GenericReporter{}, reporter)
	assert.Nil(t, handler)
	require.NotNil(t, collector)
	assert.Same(t, reporter.GetCollector(), collector)

	reporter, handler, collector = initMetrics(config.MetricsConfig{Backend: "none"})
	assert.IsType(t, &metrics.NoOpReporter{}, reporter)
	assert.Nil(t, handler)
	assert.Nil(t, collector)
}

func TestInitLimiters(t *testing.T) {
	limiters, err := initLimiters(memory.NewBackend(), metrics.NewNoOpReporter(), config.DefaultLimits())
	require.NoError(t, err)
	assert.Len(t, limiters, 3)

	decision, err := limiters[config.FamilyScreening].Peek(context.Background(), "ip")
	require.NoError(t, err)
	assert.Equal(t, int64(5), decision.Limit)

	_, err = initLimiters(memory.NewBackend(), nil, map[string]config.LimitConfig{
		config.FamilyChat: {Limit: 0, Window: time.Minute},
	})
	assert.ErrorContains(t, err, "chat")
}
