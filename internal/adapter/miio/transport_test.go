package miio

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
	"github.com/qinweixian/yunmi-water-heater/internal/core/service"
	"github.com/qinweixian/yunmi-water-heater/pkg/miio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueryDecodesNumbers(t *testing.T) {
	device := miio.NewTestDevice()
	transport := NewTransport(device)

	values, err := transport.Query(context.Background(), domain.SnapshotFields)

	require.NoError(t, err)
	require.Len(t, values, domain.SNAPSHOT_FIELD_COUNT)
	assert.Equal(t, json.Number("1"), values[0])
	assert.Equal(t, json.Number("47"), values[3])
	assert.Equal(t, "0-6-0-8-0", values[6])
}

func TestQueryPropagatesDeviceError(t *testing.T) {
	device := miio.NewTestDevice()
	device.SetOffline(true)
	transport := NewTransport(device)

	_, err := transport.Query(context.Background(), domain.SnapshotFields)

	assert.ErrorIs(t, err, miio.ErrDevice)
}

func TestTranslatorOverTestDevice(t *testing.T) {
	device := miio.NewTestDevice()
	device.SetProp("washStatus", 0)
	translator := service.NewStateTranslator(NewTransport(device), "", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, translator.Refresh(ctx))
	assert.Equal(t, domain.DISPLAY_STATE_OFF, translator.DisplayState())

	result, err := translator.TurnOn(ctx)
	require.NoError(t, err)
	assert.True(t, result.Sent)
	// not visible until the next refresh
	assert.False(t, translator.IsOn())

	require.NoError(t, translator.Refresh(ctx))
	assert.True(t, translator.IsOn())

	_, err = translator.RequestOperation(ctx, "comfort wash")
	require.NoError(t, err)
	require.NoError(t, translator.Refresh(ctx))
	assert.Equal(t, "comfort wash", translator.CurrentOperation())

	device.SetOffline(true)
	err = translator.Refresh(ctx)
	assert.ErrorIs(t, err, domain.ErrNotReady)
	assert.ErrorIs(t, err, miio.ErrDevice)
	assert.Equal(t, "comfort wash", translator.CurrentOperation())
}

func TestIdentify(t *testing.T) {
	transport := NewTransport(miio.NewTestDevice())

	model, firmware, err := transport.Identify(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "yunmi.waterheater.v1", model)
	assert.Equal(t, "1.4.0_0031", firmware)
}
