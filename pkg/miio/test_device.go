package miio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// TestDevice emulates a Yunmi water heater in memory.
type TestDevice struct {
	mu      sync.Mutex
	props   map[string]any
	offline bool
	calls   []TestCall
}

type TestCall struct {
	Method string
	Params []any
}

func NewTestDevice() *TestDevice {
	return &TestDevice{
		props: map[string]any{
			"washStatus":   1,
			"velocity":     0,
			"waterTemp":    20,
			"targetTemp":   47,
			"errStatus":    0,
			"isPreHeatNow": 0,
			"preHeatTime1": "0-6-0-8-0",
			"preHeatTime2": "0-19-0-21-0",
			"preHeatTime3": "0-0-0-0-0",
		},
	}
}

func (d *TestDevice) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.offline {
		return fmt.Errorf("%w: handshake: device offline", ErrDevice)
	}
	return nil
}

func (d *TestDevice) Close() error {
	return nil
}

func (d *TestDevice) Send(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDevice, method, err)
	}
	result, err := d.Handle(method, params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (d *TestDevice) Info(ctx context.Context) (*DeviceInfo, error) {
	raw, err := d.Send(ctx, "miIO.info", nil)
	if err != nil {
		return nil, err
	}
	var info DeviceInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Handle executes a single method call against the emulated state.
func (d *TestDevice) Handle(method string, params []any) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.offline {
		return nil, fmt.Errorf("%w: %s: device offline", ErrDevice, method)
	}
	d.calls = append(d.calls, TestCall{Method: method, Params: params})

	switch method {
	case "get_prop":
		values := make([]any, 0, len(params))
		for _, p := range params {
			name, _ := p.(string)
			values = append(values, d.props[name])
		}
		return values, nil
	case "set_temp":
		v, err := intParam(method, params)
		if err != nil {
			return nil, err
		}
		d.props["targetTemp"] = v
	case "set_power":
		v, err := intParam(method, params)
		if err != nil {
			return nil, err
		}
		d.props["washStatus"] = v
		if v == 0 {
			d.props["isPreHeatNow"] = 0
			d.props["velocity"] = 0
		}
	case "set_preheat_now":
		v, err := intParam(method, params)
		if err != nil {
			return nil, err
		}
		d.props["isPreHeatNow"] = v
	case "miIO.info":
		return DeviceInfo{
			Model:    "yunmi.waterheater.v1",
			Firmware: "1.4.0_0031",
			Hardware: "esp32",
			Mac:      "78:11:DC:00:00:01",
		}, nil
	default:
		return nil, &DeviceError{Method: method, Code: -32601, Message: "Method not found."}
	}
	return []string{"ok"}, nil
}

// SetProp overrides a device property.
func (d *TestDevice) SetProp(name string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.props[name] = value
}

func (d *TestDevice) Prop(name string) any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.props[name]
}

func (d *TestDevice) SetOffline(offline bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offline = offline
}

// Calls returns the non get_prop calls received so far.
func (d *TestDevice) Calls() []TestCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	var calls []TestCall
	for _, c := range d.calls {
		if c.Method != "get_prop" {
			calls = append(calls, c)
		}
	}
	return calls
}

func intParam(method string, params []any) (int, error) {
	if len(params) != 1 {
		return 0, &DeviceError{Method: method, Code: -32602, Message: "Invalid params."}
	}
	switch v := params[0].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, &DeviceError{Method: method, Code: -32602, Message: "Invalid params."}
		}
		return int(i), nil
	}
	return 0, &DeviceError{Method: method, Code: -32602, Message: "Invalid params."}
}

var _ Sender = (*TestDevice)(nil)
