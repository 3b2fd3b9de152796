package metrics

import (
	"time"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
	"github.com/qinweixian/yunmi-water-heater/internal/core/port"
	"github.com/qinweixian/yunmi-water-heater/pkg/miio"

	"github.com/prometheus/client_golang/prometheus"
)

const NAMESPACE = "yunmi"

const (
	RESULT_OK     = "ok"
	RESULT_FAILED = "failed"
)

// Metrics holds the bridge collectors. It is safe for concurrent use.
type Metrics struct {
	refreshTotal    *prometheus.CounterVec
	commandTotal    *prometheus.CounterVec
	waterTemp       prometheus.Gauge
	velocity        prometheus.Gauge
	ready           prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "refresh_total",
			Help:      "Water heater refreshes by result",
		}, []string{"result"}),
		commandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "command_total",
			Help:      "Water heater requests by device command and outcome",
		}, []string{"command", "outcome"}),
		waterTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "water_temperature_celsius",
			Help:      "Outlet water temperature reported by the device",
		}),
		velocity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "velocity",
			Help:      "Water flow velocity reported by the device",
		}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "ready",
			Help:      "1 when the last refresh succeeded",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: NAMESPACE,
			Name:      "miio_request_duration_seconds",
			Help:      "miIO request round trip time by method",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method"}),
	}
	if reg != nil {
		reg.MustRegister(m.refreshTotal, m.commandTotal, m.waterTemp, m.velocity, m.ready, m.requestDuration)
	}
	return m
}

func (m *Metrics) ObserveRefresh(view domain.WaterHeaterView, err error) {
	if err != nil {
		m.refreshTotal.WithLabelValues(RESULT_FAILED).Inc()
		m.ready.Set(0)
		return
	}
	m.refreshTotal.WithLabelValues(RESULT_OK).Inc()
	m.ready.Set(boolToFloat(view.Ready))
	if view.CurrentTemperature != nil {
		m.waterTemp.Set(float64(*view.CurrentTemperature))
	}
	if v, ok := view.Attributes[domain.PROP_VELOCITY].(int); ok {
		m.velocity.Set(float64(v))
	}
}

// ObserveCommand counts a request outcome. Requests that failed before a
// command was chosen are counted under the request name.
func (m *Metrics) ObserveCommand(result domain.CommandResult, err error) {
	command := result.Command
	if command == "" {
		command = result.Request
	}
	outcome := result.Outcome()
	if err != nil {
		outcome = domain.OUTCOME_FAILED
	}
	m.commandTotal.WithLabelValues(command, outcome).Inc()
}

// Instrument feeds miIO round trip times into the duration histogram.
func (m *Metrics) Instrument() *miio.Instrument {
	return &miio.Instrument{
		RecordTime: func(method string, elapsed time.Duration) {
			m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
		},
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var _ port.WaterHeaterMetrics = (*Metrics)(nil)
