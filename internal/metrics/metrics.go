package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zapi_webhook_requests_total", Help: "Webhook deliveries by result"},
		[]string{"result"},
	)
	WebhookMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zapi_webhook_messages_total", Help: "Webhook message units by outcome"},
		[]string{"outcome"},
	)
	ZAPISend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zapi_send_total", Help: "Z-API send outcomes"},
		[]string{"result"},
	)
	ZAPILatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "zapi_send_latency_seconds", Help: "Z-API send latency"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(WebhookRequests, WebhookMessages, ZAPISend, ZAPILatency)
}
