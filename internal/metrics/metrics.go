package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 交易结果标签，失败时取错误类型
const ResultSuccess = "success"

// TradeTotal 按交易类型和结果统计的交易次数
var TradeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "market",
	Name:      "trade_total",
	Help:      "Total market trades by kind and result.",
}, []string{"kind", "result"})

// TradeDuration 交易耗时，包含等待账户锁的时间
var TradeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "market",
	Name:      "trade_duration_seconds",
	Help:      "Market trade latency in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
}, []string{"kind"})

// OutboxMessages 投递结果：sent / retry / failed
var OutboxMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "market",
	Name:      "outbox_messages_total",
	Help:      "Outbox messages processed by status.",
}, []string{"status"})

func ObserveTrade(kind, result string, elapsed time.Duration) {
	TradeTotal.WithLabelValues(kind, result).Inc()
	TradeDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
