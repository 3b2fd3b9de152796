package actor

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	adactor "github.com/qinweixian/yunmi-water-heater/internal/adapter/actor"
	adminio "github.com/qinweixian/yunmi-water-heater/internal/adapter/miio"
	"github.com/qinweixian/yunmi-water-heater/internal/config"
	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
	"github.com/qinweixian/yunmi-water-heater/internal/core/service"
	"github.com/qinweixian/yunmi-water-heater/internal/mqtt"
	"github.com/qinweixian/yunmi-water-heater/internal/util"
	"github.com/qinweixian/yunmi-water-heater/pkg/miio"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type masterFixture struct {
	system *actor.ActorSystem
	pid    *actor.PID
	device *miio.TestDevice
	mqtt   chan *adactor.MQTTActor
}

func newMasterFixture(t *testing.T, cfg config.Config, device *miio.TestDevice) *masterFixture {
	t.Helper()

	logger := zap.NewNop()
	f := &masterFixture{
		system: actor.NewActorSystem(),
		device: device,
		mqtt:   make(chan *adactor.MQTTActor, 4),
	}
	transport := adminio.NewTransport(f.device)
	translator := service.NewStateTranslator(transport, cfg.Device.Name, logger)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func(stream *eventstream.EventStream) *WaterHeaterActor {
			return NewWaterHeaterActor(&cfg, translator, transport, nil, nil, stream, logger)
		}, func(stream *eventstream.EventStream) *adactor.MQTTActor {
			act := adactor.NewTestMQTTActor(&cfg, stream, logger)
			f.mqtt <- act
			return act
		}, logger)
	})
	pid, err := f.system.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	f.pid = pid
	t.Cleanup(f.system.Shutdown)
	return f
}

func (f *masterFixture) mqttActor(t *testing.T) *adactor.MQTTActor {
	t.Helper()
	select {
	case act := <-f.mqtt:
		f.mqtt <- act
		return act
	case <-time.After(2 * time.Second):
		t.Fatal("mqtt actor not started")
		return nil
	}
}

func TestMasterActor(t *testing.T) {

	f := newMasterFixture(t, util.LoadTestConfig(), miio.NewTestDevice())

	assert.Eventually(t, func() bool {
		hcr, err := healthCheck(f.system.Root, f.pid)
		return err == nil && hcr.Healthy
	}, 5*time.Second, 50*time.Millisecond, "master healthy once the first refresh succeeded")

	res, err := f.system.Root.RequestFuture(f.pid, domain.GetWaterHeaterStateRequest{}, time.Second).Result()
	require.NoError(t, err)
	view := res.(domain.GetWaterHeaterStateResponse).View
	assert.True(t, view.Ready)
	assert.Equal(t, domain.DISPLAY_STATE_STANDBY, view.State)
}

func TestMasterActorUnhealthyDevice(t *testing.T) {

	device := miio.NewTestDevice()
	device.SetOffline(true)
	f := newMasterFixture(t, util.LoadTestConfig(), device)

	time.Sleep(500 * time.Millisecond)

	hcr, err := healthCheck(f.system.Root, f.pid)
	require.NoError(t, err)
	assert.False(t, hcr.Healthy)
}

func TestMasterRoutesMQTTCommands(t *testing.T) {

	f := newMasterFixture(t, util.LoadTestConfig(), miio.NewTestDevice())
	mqttActor := f.mqttActor(t)
	require.Eventually(t, func() bool {
		hcr, err := healthCheck(f.system.Root, f.pid)
		return err == nil && hcr.Healthy
	}, 5*time.Second, 50*time.Millisecond)

	f.system.Root.Send(f.pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: domain.WATER_HEATER_ID,
		Command:  mqtt.COMMAND_WATER_HEATER,
		Param:    mqtt.PARAM_MODE,
		Payload:  "kitchen",
	}})

	code, _ := domain.Vocabulary.Code("kitchen")
	assert.Eventually(t, func() bool {
		return f.device.Prop("targetTemp") == int(code)
	}, 2*time.Second, 20*time.Millisecond)

	// the follow-up refresh is published on the state topic
	assert.Eventually(t, func() bool {
		payload, ok := mqttActor.LastPublished("yunmi/water_heater/water_heater/state")
		if !ok {
			return false
		}
		var state map[string]any
		return json.Unmarshal([]byte(payload), &state) == nil && state["mode"] == "kitchen"
	}, 2*time.Second, 20*time.Millisecond)

	// invalid payloads are dropped
	f.system.Root.Send(f.pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: domain.SWITCH_ID_AWAY_MODE,
		Command:  mqtt.COMMAND_SWITCH,
		Payload:  "maybe",
	}})
	hcr, err := healthCheck(f.system.Root, f.pid)
	require.NoError(t, err)
	assert.True(t, hcr.Healthy)
}

func TestMasterPublishesDiscovery(t *testing.T) {

	cfg := util.LoadTestConfig()
	cfg.MQTT.HADiscoveryEnable = true
	f := newMasterFixture(t, cfg, miio.NewTestDevice())
	mqttActor := f.mqttActor(t)

	var heaterTopic string
	assert.Eventually(t, func() bool {
		for _, m := range mqttActor.Published() {
			if m.Retain && strings.HasPrefix(m.Topic, "homeassistant/water_heater/") {
				heaterTopic = m.Topic
				return true
			}
		}
		return false
	}, 10*time.Second, 50*time.Millisecond)

	payload, ok := mqttActor.LastPublished(heaterTopic)
	require.True(t, ok)
	var msg map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &msg))
	assert.Len(t, msg["modes"], 9)
	assert.Equal(t, "yunmi/water_heater/water_heater/mode/set", msg["mode_command_topic"])
}
