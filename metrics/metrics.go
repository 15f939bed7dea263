package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OnlineConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "messenger_online_connections",
		Help: "Current authenticated realtime connections on this node.",
	})

	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messenger_messages_sent_total",
		Help: "Total messages stored and fanned out.",
	})
	MessageErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messenger_message_errors_total",
		Help: "Total send_message events answered with message_error.",
	})

	FanoutEmits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messenger_fanout_emits_total",
		Help: "Total events emitted to connections, by event name.",
	}, []string{"event"})
)

func Register() {
	prometheus.MustRegister(
		OnlineConnections,
		MessagesSent, MessageErrors,
		FanoutEmits,
	)
}
