package miio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
	"github.com/qinweixian/yunmi-water-heater/internal/core/port"
	"github.com/qinweixian/yunmi-water-heater/pkg/miio"
)

// Transport exposes a miIO sender as a water heater transport.
type Transport struct {
	sender miio.Sender
}

func NewTransport(sender miio.Sender) *Transport {
	return &Transport{sender: sender}
}

func (t *Transport) Query(ctx context.Context, fields []string) ([]any, error) {
	params := make([]any, len(fields))
	for i, f := range fields {
		params[i] = f
	}
	raw, err := t.sender.Send(ctx, domain.CMD_GET_PROP, params)
	if err != nil {
		return nil, err
	}
	var values []any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&values); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", domain.CMD_GET_PROP, err)
	}
	return values, nil
}

func (t *Transport) Command(ctx context.Context, name string, args []any) error {
	_, err := t.sender.Send(ctx, name, args)
	return err
}

func (t *Transport) Identify(ctx context.Context) (string, string, error) {
	info, err := t.sender.Info(ctx)
	if err != nil {
		return "", "", err
	}
	return info.Model, info.Firmware, nil
}

var _ port.Transport = (*Transport)(nil)
var _ port.DeviceIdentity = (*Transport)(nil)
