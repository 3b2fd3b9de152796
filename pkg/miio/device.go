package miio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrDevice = errors.New("miio device error")

// DeviceError is an error object returned by the device itself.
type DeviceError struct {
	Method  string `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: device error %d: %s", e.Method, e.Code, e.Message)
}

func (e *DeviceError) Unwrap() error {
	return ErrDevice
}

type DeviceInfo struct {
	Model    string `json:"model"`
	Firmware string `json:"fw_ver"`
	Hardware string `json:"hw_ver"`
	Mac      string `json:"mac"`
}

// Sender issues miIO method calls against a device.
type Sender interface {
	Open(ctx context.Context) error
	Close() error
	Send(ctx context.Context, method string, params []any) (json.RawMessage, error)
	Info(ctx context.Context) (*DeviceInfo, error)
}

type Instrument struct {
	RecordTime func(method string, elapsed time.Duration)
}

type request struct {
	Id     uint32 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type response struct {
	Id     uint32          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *DeviceError    `json:"error"`
}

type Device struct {
	addr       string
	codec      *Codec
	timeout    time.Duration
	logger     *zap.Logger
	instrument []Instrument

	mu       sync.Mutex
	conn     net.Conn
	deviceId uint32
	stamp    uint32
	stampAt  time.Time
	lastId   uint32
}

// NewDevice creates a client for the device at host, which may carry a port.
// The token is the 32 char hex string from the vendor app.
func NewDevice(host string, token string, timeout time.Duration, logger *zap.Logger, instrumentation *Instrument) (*Device, error) {
	raw, err := ParseToken(token)
	if err != nil {
		return nil, err
	}
	codec, err := NewCodec(raw)
	if err != nil {
		return nil, err
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, strconv.Itoa(DEFAULT_PORT))
	}
	logger = logger.With(zap.String("target", "miio"), zap.String("addr", host))

	// instrumentation
	inst := []Instrument{traceLoggerInstrumentation(logger)}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	return &Device{
		addr:       host,
		codec:      codec,
		timeout:    timeout,
		logger:     logger,
		instrument: inst,
	}, nil
}

func traceLoggerInstrumentation(logger *zap.Logger) Instrument {
	return Instrument{
		RecordTime: func(method string, elapsed time.Duration) {
			logger.Debug("miio request", zap.String("method", method), zap.Int64("millis", elapsed.Milliseconds()))
		},
	}
}

func (d *Device) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open(ctx)
}

func (d *Device) open(ctx context.Context) error {
	if d.conn == nil {
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "udp", d.addr)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDevice, err)
		}
		d.conn = conn
	}
	if err := d.handshake(ctx); err != nil {
		return fmt.Errorf("%w: handshake: %w", ErrDevice, err)
	}
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	d.stampAt = time.Time{}
	return err
}

func (d *Device) handshake(ctx context.Context) error {
	if err := d.conn.SetDeadline(d.deadline(ctx)); err != nil {
		return err
	}
	if _, err := d.conn.Write(HelloPacket()); err != nil {
		return err
	}
	buf := make([]byte, maxPacketLength)
	for {
		n, err := d.conn.Read(buf)
		if err != nil {
			return err
		}
		h, _, err := d.codec.Open(buf[:n])
		if err != nil {
			d.logger.Debug("ignoring packet during handshake", zap.Error(err))
			continue
		}
		d.deviceId = h.DeviceId
		d.stamp = h.Stamp
		d.stampAt = time.Now()
		d.logger.Debug("miio handshake", zap.Uint32("deviceId", h.DeviceId), zap.Uint32("stamp", h.Stamp))
		return nil
	}
}

// Send calls method and returns its raw result. On timeout the session is
// re-established once and the call repeated.
func (d *Device) Send(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	defer RecordTimer(method, d.instrument)()
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil || d.stampAt.IsZero() {
		if err := d.open(ctx); err != nil {
			return nil, err
		}
	}
	result, err := d.roundTrip(ctx, method, params)
	if isTimeout(err) && ctx.Err() == nil {
		d.logger.Warn("miio request timed out, retrying after handshake", zap.String("method", method))
		if err := d.handshake(ctx); err != nil {
			return nil, fmt.Errorf("%w: handshake: %w", ErrDevice, err)
		}
		result, err = d.roundTrip(ctx, method, params)
	}
	if err != nil {
		var devErr *DeviceError
		if errors.As(err, &devErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrDevice, method, err)
	}
	return result, nil
}

func (d *Device) Info(ctx context.Context) (*DeviceInfo, error) {
	raw, err := d.Send(ctx, "miIO.info", []any{})
	if err != nil {
		return nil, err
	}
	var info DeviceInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("%w: miIO.info: %w", ErrDevice, err)
	}
	return &info, nil
}

func (d *Device) roundTrip(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	d.lastId++
	id := d.lastId
	payload, err := json.Marshal(request{Id: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	stamp := d.stamp + uint32(time.Since(d.stampAt)/time.Second)
	packet, err := d.codec.Seal(d.deviceId, stamp, payload)
	if err != nil {
		return nil, err
	}
	if err := d.conn.SetDeadline(d.deadline(ctx)); err != nil {
		return nil, err
	}
	if _, err := d.conn.Write(packet); err != nil {
		return nil, err
	}

	buf := make([]byte, maxPacketLength)
	for {
		n, err := d.conn.Read(buf)
		if err != nil {
			return nil, err
		}
		_, plain, err := d.codec.Open(buf[:n])
		if err != nil {
			d.logger.Debug("ignoring undecodable packet", zap.Error(err))
			continue
		}
		if plain == nil {
			continue
		}
		var resp response
		if err := json.Unmarshal(plain, &resp); err != nil {
			return nil, fmt.Errorf("invalid response: %w", err)
		}
		if resp.Id != id {
			d.logger.Debug("ignoring stale response", zap.Uint32("id", resp.Id), zap.Uint32("expected", id))
			continue
		}
		if resp.Error != nil {
			resp.Error.Method = method
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

func (d *Device) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(d.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func RecordTimer(name string, instrument []Instrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

var _ Sender = (*Device)(nil)
