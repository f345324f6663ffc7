package network

import (
	"fmt"
	"sync"
	"time"
)

// StatsSource 可被监视的统计来源
type StatsSource interface {
	GetStats() map[string]interface{}
}

// MetricsMonitor 定期将网关统计写入日志
type MetricsMonitor struct {
	source    StatsSource
	logger    Logger
	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
}

// NewMetricsMonitor 创建监控指标监视器
func NewMetricsMonitor(source StatsSource, logger Logger) *MetricsMonitor {
	if logger == nil {
		logger = nopLogger{}
	}
	return &MetricsMonitor{source: source, logger: logger}
}

// Start 启动监控
func (mm *MetricsMonitor) Start(interval time.Duration) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.isRunning || interval <= 0 {
		return
	}
	mm.isRunning = true
	mm.stopChan = make(chan struct{})
	go mm.monitorLoop(interval, mm.stopChan)
}

// Stop 停止监控
func (mm *MetricsMonitor) Stop() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if !mm.isRunning {
		return
	}
	mm.isRunning = false
	close(mm.stopChan)
}

func (mm *MetricsMonitor) monitorLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mm.logger.Infof("📊 %s", mm.GetCurrentStats())
		case <-stop:
			return
		}
	}
}

// GetCurrentStats 当前统计的单行描述
func (mm *MetricsMonitor) GetCurrentStats() string {
	stats := mm.source.GetStats()
	return fmt.Sprintf("网关统计 - 在线: %v, 转发: %v, 丢弃: %v, 丢弃率: %.2f%%, 运行时间: %.1f秒",
		stats["clients"],
		stats["frames_relayed"],
		stats["frames_dropped"],
		toFloat(stats["drop_rate"])*100,
		toFloat(stats["uptime_seconds"]))
}

// CheckHealthStatus 丢弃率超过阈值视为不健康
func (mm *MetricsMonitor) CheckHealthStatus(maxDropRate float64) (bool, string) {
	dropRate := toFloat(mm.source.GetStats()["drop_rate"])
	if dropRate > maxDropRate {
		return false, fmt.Sprintf("丢弃率过高: %.2f%%", dropRate*100)
	}
	return true, "正常"
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
