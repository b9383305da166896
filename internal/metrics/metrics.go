// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とワーカーから利用する。
type MetricsCollector interface {
	RecordTouch(status string)
	RecordUnknownCardScan()
	SetOccupancy(count int)
	RecordRegistration(kind, status string)
	RecordSweepExited(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	touchTotal        *prometheus.CounterVec
	unknownCardScans  prometheus.Counter
	occupancy         prometheus.Gauge
	registrationTotal *prometheus.CounterVec
	sweepExitedTotal  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		touchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomkeeper_touch_total",
			Help: "カードタッチの合計数（入室/退室別）",
		}, []string{"status"}),
		unknownCardScans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomkeeper_unknown_card_scans_total",
			Help: "未登録タグのスキャン合計数",
		}),
		occupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roomkeeper_occupancy",
			Help: "現在の在室人数",
		}),
		registrationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomkeeper_registration_total",
			Help: "クレデンシャル登録の合計数（種別・結果別）",
		}, []string{"kind", "status"}),
		sweepExitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomkeeper_sweep_exited_total",
			Help: "一括退室で閉じられた入室ログの合計数",
		}),
	}

	reg.MustRegister(
		c.touchTotal,
		c.unknownCardScans,
		c.occupancy,
		c.registrationTotal,
		c.sweepExitedTotal,
	)

	return c
}

// RecordTouch はカードタッチを入室/退室別に記録する。
func (c *Collector) RecordTouch(status string) {
	c.touchTotal.WithLabelValues(status).Inc()
}

// RecordUnknownCardScan は未登録タグのスキャンを記録する。
func (c *Collector) RecordUnknownCardScan() {
	c.unknownCardScans.Inc()
}

// SetOccupancy は現在の在室人数を設定する。
func (c *Collector) SetOccupancy(count int) {
	c.occupancy.Set(float64(count))
}

// RecordRegistration はクレデンシャル登録を種別・結果別に記録する。
func (c *Collector) RecordRegistration(kind, status string) {
	c.registrationTotal.WithLabelValues(kind, status).Inc()
}

// RecordSweepExited は一括退室で閉じられたログ数を記録する。
func (c *Collector) RecordSweepExited(count int) {
	c.sweepExitedTotal.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
