package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatrelay",
		Name:      "connected_clients",
		Help:      "Number of currently registered client connections.",
	})

	messagesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Name:      "messages_accepted_total",
		Help:      "Messages that were persisted and published for fan-out.",
	})

	messagesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Name:      "messages_rejected_total",
		Help:      "Messages rejected at ingress, labeled by reason.",
	}, []string{"reason"})

	broadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Name:      "broadcasts_total",
		Help:      "Fan-out rounds delivered to the connection set.",
	})

	fanoutErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Name:      "fanout_errors_total",
		Help:      "Relay queue fetch, decode, and ack failures.",
	})
)
