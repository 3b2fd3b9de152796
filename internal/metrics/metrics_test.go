package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRefresh(t *testing.T) {

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	temp := 42
	m.ObserveRefresh(domain.WaterHeaterView{
		Ready:              true,
		CurrentTemperature: &temp,
		Attributes:         map[string]any{domain.PROP_VELOCITY: 3},
	}, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshTotal.WithLabelValues(RESULT_OK)))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.waterTemp))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.velocity))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ready))

	m.ObserveRefresh(domain.WaterHeaterView{}, errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshTotal.WithLabelValues(RESULT_FAILED)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ready))
	// last known temperature is kept
	assert.Equal(t, 42.0, testutil.ToFloat64(m.waterTemp))
}

func TestObserveCommand(t *testing.T) {

	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveCommand(domain.SentCommand("set_temperature", domain.CMD_SET_TEMP, 45), nil)
	m.ObserveCommand(domain.SkippedCommand("turn_on", "washStatus != 0"), nil)
	m.ObserveCommand(domain.CommandResult{Request: "turn_off", Command: domain.CMD_SET_POWER}, domain.ErrNotReady)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandTotal.WithLabelValues(domain.CMD_SET_TEMP, domain.OUTCOME_SENT)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandTotal.WithLabelValues("turn_on", domain.OUTCOME_SKIPPED)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandTotal.WithLabelValues(domain.CMD_SET_POWER, domain.OUTCOME_FAILED)))
}

func TestInstrumentRecordsDuration(t *testing.T) {

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Instrument().RecordTime(domain.CMD_GET_PROP, 30*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "yunmi_miio_request_duration_seconds" {
			found = true
			require.Len(t, f.GetMetric(), 1)
			assert.Equal(t, uint64(1), f.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	assert.True(t, found)
}
