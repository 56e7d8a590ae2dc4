package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "layerproxy"

var (
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Requests sent to upstream registries, by resource type and response code.",
	}, []string{"resource", "code"})

	TokenExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_exchanges_total",
		Help:      "Bearer token exchanges with registry auth realms, by result.",
	}, []string{"result"})

	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Proxied requests, by mode and response code.",
	}, []string{"mode", "code"})
)

func init() {
	prometheus.MustRegister(version.NewCollector(namespace))
}

// Code renders an HTTP status for use as a label value.
func Code(status int) string {
	return strconv.Itoa(status)
}
