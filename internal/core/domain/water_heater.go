package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotReady marks a device that could not be reached. The caller is
	// expected to retry on its own schedule.
	ErrNotReady = errors.New("water heater not ready")
	// ErrUnknownOperation is returned for operation labels outside the vocabulary.
	ErrUnknownOperation = errors.New("unknown operation")
)

const (
	MIN_TEMP_CELSIUS = 30
	MAX_TEMP_CELSIUS = 65
	PRECISION_WHOLE  = 1.0
	TEMP_UNIT        = "C"
)

// Device property names, in the order get_prop must request them. The
// device answers positionally.
const (
	PROP_WASH_STATUS     = "washStatus"
	PROP_VELOCITY        = "velocity"
	PROP_WATER_TEMP      = "waterTemp"
	PROP_TARGET_TEMP     = "targetTemp"
	PROP_ERR_STATUS      = "errStatus"
	PROP_IS_PREHEAT_NOW  = "isPreHeatNow"
	PROP_PREHEAT_TIME_1  = "preHeatTime1"
	PROP_PREHEAT_TIME_2  = "preHeatTime2"
	PROP_PREHEAT_TIME_3  = "preHeatTime3"
	SNAPSHOT_FIELD_COUNT = 9
)

var SnapshotFields = []string{
	PROP_WASH_STATUS,
	PROP_VELOCITY,
	PROP_WATER_TEMP,
	PROP_TARGET_TEMP,
	PROP_ERR_STATUS,
	PROP_IS_PREHEAT_NOW,
	PROP_PREHEAT_TIME_1,
	PROP_PREHEAT_TIME_2,
	PROP_PREHEAT_TIME_3,
}

// Device methods
const (
	CMD_GET_PROP        = "get_prop"
	CMD_SET_TEMP        = "set_temp"
	CMD_SET_POWER       = "set_power"
	CMD_SET_PREHEAT_NOW = "set_preheat_now"
)

// Snapshot is the last fetched device telemetry.
//
// TargetTemp is overloaded by the firmware: when its value is an
// OperationVocabulary code it names the selected operation instead of a
// temperature in Celsius. Check IsOperationCode before reading it as degrees.
type Snapshot struct {
	WashStatus   int // 0 off, 1 on, >=2 active with flow
	Velocity     int
	WaterTemp    int
	TargetTemp   int
	ErrStatus    int
	IsPreHeatNow int
	PreHeatTime1 string
	PreHeatTime2 string
	PreHeatTime3 string

	// Fetched is false until the first successful refresh.
	Fetched   bool
	FetchedAt time.Time
}

// SnapshotFromValues builds a snapshot from a get_prop result. Position i of
// values maps to SnapshotFields[i].
func SnapshotFromValues(values []any) (Snapshot, error) {
	if len(values) != SNAPSHOT_FIELD_COUNT {
		return Snapshot{}, fmt.Errorf("expected %d values, got %d", SNAPSHOT_FIELD_COUNT, len(values))
	}
	ints := make([]int, 6)
	for i := range ints {
		v, err := toInt(values[i])
		if err != nil {
			return Snapshot{}, fmt.Errorf("field %s: %w", SnapshotFields[i], err)
		}
		ints[i] = v
	}
	strs := make([]string, 3)
	for i := range strs {
		v, err := toString(values[6+i])
		if err != nil {
			return Snapshot{}, fmt.Errorf("field %s: %w", SnapshotFields[6+i], err)
		}
		strs[i] = v
	}
	return Snapshot{
		WashStatus:   ints[0],
		Velocity:     ints[1],
		WaterTemp:    ints[2],
		TargetTemp:   ints[3],
		ErrStatus:    ints[4],
		IsPreHeatNow: ints[5],
		PreHeatTime1: strs[0],
		PreHeatTime2: strs[1],
		PreHeatTime3: strs[2],
		Fetched:      true,
	}, nil
}

// Attributes returns the raw device fields keyed by property name. Unfetched
// temperatures and error status are reported as nil.
func (s Snapshot) Attributes() map[string]any {
	attrs := map[string]any{
		PROP_WASH_STATUS:    s.WashStatus,
		PROP_VELOCITY:       s.Velocity,
		PROP_WATER_TEMP:     nil,
		PROP_TARGET_TEMP:    nil,
		PROP_ERR_STATUS:     nil,
		PROP_IS_PREHEAT_NOW: s.IsPreHeatNow,
		PROP_PREHEAT_TIME_1: nil,
		PROP_PREHEAT_TIME_2: nil,
		PROP_PREHEAT_TIME_3: nil,
	}
	if s.Fetched {
		attrs[PROP_WATER_TEMP] = s.WaterTemp
		attrs[PROP_TARGET_TEMP] = s.TargetTemp
		attrs[PROP_ERR_STATUS] = s.ErrStatus
		attrs[PROP_PREHEAT_TIME_1] = s.PreHeatTime1
		attrs[PROP_PREHEAT_TIME_2] = s.PreHeatTime2
		attrs[PROP_PREHEAT_TIME_3] = s.PreHeatTime3
	}
	return attrs
}

// DisplayState

type DisplayState string

const (
	DISPLAY_STATE_PREHEATING DisplayState = "preheating"
	DISPLAY_STATE_RUNNING    DisplayState = "running"
	DISPLAY_STATE_STANDBY    DisplayState = "standby"
	DISPLAY_STATE_OFF        DisplayState = "off"
	DISPLAY_STATE_UNKNOWN    DisplayState = "unknown"
)

// DisplayState derives the state shown to the user. Pre-heat and flow are
// layered flags over washStatus; the first match wins.
func (s Snapshot) DisplayState() DisplayState {
	switch {
	case s.IsPreHeatNow == 1:
		return DISPLAY_STATE_PREHEATING
	case s.Velocity > 0:
		return DISPLAY_STATE_RUNNING
	case s.WashStatus == 1:
		return DISPLAY_STATE_STANDBY
	case s.WashStatus == 0:
		return DISPLAY_STATE_OFF
	default:
		return DISPLAY_STATE_UNKNOWN
	}
}

// Supported features

type SupportedFeatures uint8

const (
	FEATURE_TARGET_TEMPERATURE SupportedFeatures = 1 << iota
	FEATURE_OPERATION_MODE
	FEATURE_AWAY_MODE
	FEATURE_ON_OFF
)

const ALL_FEATURES = FEATURE_TARGET_TEMPERATURE | FEATURE_OPERATION_MODE | FEATURE_AWAY_MODE | FEATURE_ON_OFF

func (f SupportedFeatures) Has(feature SupportedFeatures) bool {
	return f&feature == feature
}

// CommandResult describes what a mutating request did. A request dropped by
// its guard has Sent=false and a Reason.
type CommandResult struct {
	Request string
	Command string
	Args    []int
	Sent    bool
	Reason  string
}

func SentCommand(request, command string, args ...int) CommandResult {
	return CommandResult{
		Request: request,
		Command: command,
		Args:    args,
		Sent:    true,
	}
}

func SkippedCommand(request, reason string) CommandResult {
	return CommandResult{
		Request: request,
		Reason:  reason,
	}
}

func (r CommandResult) Outcome() string {
	if r.Sent {
		return OUTCOME_SENT
	}
	return OUTCOME_SKIPPED
}

const (
	OUTCOME_SENT    = "sent"
	OUTCOME_SKIPPED = "skipped"
	OUTCOME_FAILED  = "failed"
)

// WaterHeaterView is a read-only copy of everything the entity exposes.
type WaterHeaterView struct {
	Name               string            `json:"name"`
	Ready              bool              `json:"ready"`
	State              DisplayState      `json:"state"`
	CurrentOperation   string            `json:"current_operation"`
	OperationList      []string          `json:"operation_list"`
	CurrentTemperature *int              `json:"current_temperature"`
	TargetTemperature  *int              `json:"target_temperature"`
	MinTemp            int               `json:"min_temp"`
	MaxTemp            int               `json:"max_temp"`
	TemperatureUnit    string            `json:"temperature_unit"`
	Precision          float64           `json:"precision"`
	SupportedFeatures  SupportedFeatures `json:"supported_features"`
	IsPreHeatNow       bool              `json:"is_preheat_now"`
	IsOn               bool              `json:"is_on"`
	ErrorStatus        int               `json:"error_status"`
	Attributes         map[string]any    `json:"attributes"`
	LastRefresh        time.Time         `json:"last_refresh"`
}

type JournalEntry struct {
	Id         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Request    string    `json:"request"`
	Command    string    `json:"command,omitempty"`
	Args       []int     `json:"args,omitempty"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
}
