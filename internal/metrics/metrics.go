package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages accepted by the send path.",
	})
	PushDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_push_events_delivered_total",
		Help: "Push events delivered to a live connection, by event type.",
	}, []string{"event"})
	ReadReceipts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_read_receipts_total",
		Help: "Mark-read operations that transitioned at least one message.",
	})
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_connections",
		Help: "Currently open websocket connections.",
	})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
