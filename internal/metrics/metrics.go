// Package metrics defines the bridge's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cloudpico-bridge/internal/device"
)

const namespace = "bridge"

type Metrics struct {
	registry *prometheus.Registry

	UplinkSent      prometheus.Counter
	UplinkFailed    prometheus.Counter
	SensorFaults    prometheus.Counter
	DisplayFaults   prometheus.Counter
	DownlinkErrors  prometheus.Counter
	DownlinkAckErrs prometheus.Counter
	Commands        *prometheus.CounterVec
	Indicator       prometheus.Gauge
	LiveReadings    prometheus.Counter
}

// New registers all collectors on a private registry, plus the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		UplinkSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "uplink", Name: "sent_total",
			Help: "Telemetry messages accepted by the broker.",
		}),
		UplinkFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "uplink", Name: "failed_total",
			Help: "Telemetry messages that could not be sent.",
		}),
		LiveReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "uplink", Name: "live_readings_total",
			Help: "Readings taken from a live sensor.",
		}),
		SensorFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sensor", Name: "faults_total",
			Help: "Sensor measurements that failed and fell back to synthetic data.",
		}),
		DisplayFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "display", Name: "faults_total",
			Help: "Display writes that failed.",
		}),
		DownlinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "downlink", Name: "receive_errors_total",
			Help: "Receive calls that returned an error.",
		}),
		DownlinkAckErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "downlink", Name: "ack_errors_total",
			Help: "Downlink messages whose ack failed.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "downlink", Name: "commands_total",
			Help: "Downlink commands processed, by decoded kind.",
		}, []string{"command"}),
		Indicator: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "indicator_green",
			Help: "1 when the indicator is green, 0 when red.",
		}),
	}
	reg.MustRegister(
		m.UplinkSent, m.UplinkFailed, m.LiveReadings, m.SensorFaults, m.DisplayFaults,
		m.DownlinkErrors, m.DownlinkAckErrs, m.Commands, m.Indicator,
	)
	return m
}

// ObserveIndicator records the current indicator color.
func (m *Metrics) ObserveIndicator(c device.Color) {
	if c == device.ColorGreen {
		m.Indicator.Set(1)
		return
	}
	m.Indicator.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
