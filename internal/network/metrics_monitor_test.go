package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticStats map[string]interface{}

func (s staticStats) GetStats() map[string]interface{} { return s }

func TestMetricsMonitorReport(t *testing.T) {
	mm := NewMetricsMonitor(staticStats{
		"clients":        2,
		"frames_relayed": int64(9),
		"frames_dropped": int64(1),
		"drop_rate":      0.1,
		"uptime_seconds": 12.5,
	}, nil)

	line := mm.GetCurrentStats()
	assert.Contains(t, line, "在线: 2")
	assert.Contains(t, line, "丢弃率: 10.00%")

	ok, _ := mm.CheckHealthStatus(0.5)
	assert.True(t, ok)
	ok, reason := mm.CheckHealthStatus(0.05)
	assert.False(t, ok)
	assert.Contains(t, reason, "10.00%")

	mm.Start(0)
	mm.Stop()
}

func TestGatewayStatsCountDrops(t *testing.T) {
	gw := NewGateway(nil, nil, nil, nil)
	gw.dropped("send_message", "offline")
	stats := gw.GetStats()
	assert.EqualValues(t, 1, stats["frames_dropped"])
	assert.EqualValues(t, 0, stats["frames_relayed"])
	assert.Equal(t, 1.0, stats["drop_rate"])
}
