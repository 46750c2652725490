// ============================================================================
// Workclip Metrics - Prometheus 監控指標
// ============================================================================
//
// Package: internal/metrics
// 文件: metrics.go
// 功能: 收集和暴露排程器運行指標，支持 Prometheus 監控
//
// 指標分類:
//
//   1. 計數器 (Counter) - 累計值，只增不減：
//      - workclip_ticks_total: 排程器 tick 總數
//      - workclip_state_transitions_total{to}: 播放器狀態轉換
//      - workclip_content_changes_total: 活躍片段集合變化
//      - workclip_finishes_total: 播放完成次數
//      - workclip_triggers_total: trigger point 觸發次數
//      - workclip_tick_errors_total: tick 中播放器 panic 次數
//      - workclip_journal_events_total: 寫入 journal 的事件數
//
//   2. 性能指標 (Histogram)：
//      - workclip_tick_duration_seconds: 一次 tick（含 barrier）耗時
//
//   3. 狀態指標 (Gauge)：
//      - workclip_recovery_time_seconds: 最近一次恢復時間
//      - workclip_players{state}: 各狀態播放器數量
//
// Prometheus 查詢示例:
//
//   # 每秒 tick 數
//   rate(workclip_ticks_total[1m])
//
//   # 95 分位 tick 耗時
//   histogram_quantile(0.95, workclip_tick_duration_seconds_bucket)
//
// HTTP 端點:
//   通過 /metrics 端點暴露，默認端口: 9090
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector Prometheus 指標收集器
type Collector struct {
	ticks          prometheus.Counter
	transitions    *prometheus.CounterVec
	contentChanges prometheus.Counter
	finishes       prometheus.Counter
	triggers       prometheus.Counter
	tickErrors     prometheus.Counter
	journalEvents  prometheus.Counter

	tickDuration prometheus.Histogram
	recoveryTime prometheus.Gauge

	players *prometheus.GaugeVec
}

// tickBuckets 以一幀 (~16ms) 為中心
var tickBuckets = []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.05, 0.1, 0.25}

// NewCollector 創建新的指標收集器並註冊到 prometheus.DefaultRegisterer
func NewCollector() *Collector {
	c := &Collector{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workclip_ticks_total",
			Help: "Total number of scheduler ticks",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workclip_state_transitions_total",
			Help: "Player state transitions by target state",
		}, []string{"to"}),
		contentChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workclip_content_changes_total",
			Help: "Total number of active content set changes",
		}),
		finishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workclip_finishes_total",
			Help: "Total number of finished playthroughs",
		}),
		triggers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workclip_triggers_total",
			Help: "Total number of trigger point firings",
		}),
		tickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workclip_tick_errors_total",
			Help: "Total number of player ticks that failed",
		}),
		journalEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workclip_journal_events_total",
			Help: "Total number of events appended to the journal",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "workclip_tick_duration_seconds",
			Help:    "Wall time of one scheduler tick across all players",
			Buckets: tickBuckets,
		}),
		recoveryTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workclip_recovery_time_seconds",
			Help: "Time taken to restore players from snapshot and journal",
		}),
		players: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "workclip_players",
			Help: "Current number of players by state",
		}, []string{"state"}),
	}

	prometheus.MustRegister(c.ticks)
	prometheus.MustRegister(c.transitions)
	prometheus.MustRegister(c.contentChanges)
	prometheus.MustRegister(c.finishes)
	prometheus.MustRegister(c.triggers)
	prometheus.MustRegister(c.tickErrors)
	prometheus.MustRegister(c.journalEvents)
	prometheus.MustRegister(c.tickDuration)
	prometheus.MustRegister(c.recoveryTime)
	prometheus.MustRegister(c.players)

	return c
}

// RecordTick 記錄一次 tick 與耗時
func (c *Collector) RecordTick(seconds float64) {
	c.ticks.Inc()
	c.tickDuration.Observe(seconds)
}

// RecordTransition 記錄狀態轉換
func (c *Collector) RecordTransition(to string) {
	c.transitions.WithLabelValues(to).Inc()
}

// RecordContentChange 記錄活躍片段集合變化
func (c *Collector) RecordContentChange() {
	c.contentChanges.Inc()
}

// RecordFinish 記錄播放完成
func (c *Collector) RecordFinish() {
	c.finishes.Inc()
}

// RecordTrigger 記錄 trigger point 觸發
func (c *Collector) RecordTrigger() {
	c.triggers.Inc()
}

// RecordTickError 記錄播放器 tick 失敗
func (c *Collector) RecordTickError() {
	c.tickErrors.Inc()
}

// RecordJournalEvent 記錄寫入 journal 的事件
func (c *Collector) RecordJournalEvent() {
	c.journalEvents.Inc()
}

// SetRecoveryTime 設置恢復時間
func (c *Collector) SetRecoveryTime(seconds float64) {
	c.recoveryTime.Set(seconds)
}

// UpdatePlayerStats 更新各狀態播放器數量；未出現的狀態歸零
func (c *Collector) UpdatePlayerStats(byState map[string]int) {
	c.players.Reset()
	for state, n := range byState {
		c.players.WithLabelValues(state).Set(float64(n))
	}
}

// Handler 回傳 /metrics 的 HTTP handler（使用 prometheus.DefaultGatherer）
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer 啟動 Prometheus metrics HTTP 伺服器（阻塞）
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
