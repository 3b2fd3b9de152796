package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

type OperationCode int

const (
	OP_CUSTOM_TEMPERATURE OperationCode = 99
	OP_PREHEAT_ON         OperationCode = 101
	OP_PREHEAT_OFF        OperationCode = 102
	OP_POWER_ON           OperationCode = 103
	OP_POWER_OFF          OperationCode = 104
	OP_CHILDREN_WASH      OperationCode = 39
	OP_COMFORT_WASH       OperationCode = 40
	OP_ELDERLY_WASH       OperationCode = 42
	OP_KITCHEN            OperationCode = 36
)

type Operation struct {
	Code  OperationCode
	Label string
}

// operations keeps the firmware's order; operation_list is reported in it.
var operations = []Operation{
	{OP_CUSTOM_TEMPERATURE, "custom temperature"},
	{OP_PREHEAT_ON, "pre-heat on"},
	{OP_PREHEAT_OFF, "pre-heat off"},
	{OP_POWER_ON, "power on"},
	{OP_POWER_OFF, "power off"},
	{OP_CHILDREN_WASH, "children's wash"},
	{OP_COMFORT_WASH, "comfort wash"},
	{OP_ELDERLY_WASH, "elderly wash"},
	{OP_KITCHEN, "kitchen"},
}

// OperationVocabulary is the fixed code <-> label mapping of the device.
type OperationVocabulary struct {
	byCode  map[OperationCode]string
	byLabel map[string]OperationCode
	labels  []string
}

var Vocabulary = newOperationVocabulary(operations)

func newOperationVocabulary(ops []Operation) OperationVocabulary {
	v := OperationVocabulary{
		byCode:  make(map[OperationCode]string, len(ops)),
		byLabel: make(map[string]OperationCode, len(ops)),
		labels:  make([]string, 0, len(ops)),
	}
	for _, op := range ops {
		if _, dup := v.byCode[op.Code]; dup {
			panic(fmt.Sprintf("duplicated operation code %d", op.Code))
		}
		v.byCode[op.Code] = op.Label
		v.byLabel[op.Label] = op.Code
		v.labels = append(v.labels, op.Label)
	}
	return v
}

func (v OperationVocabulary) Label(code OperationCode) (string, bool) {
	label, ok := v.byCode[code]
	return label, ok
}

func (v OperationVocabulary) Code(label string) (OperationCode, bool) {
	code, ok := v.byLabel[label]
	return code, ok
}

func (v OperationVocabulary) IsOperationCode(value int) bool {
	_, ok := v.byCode[OperationCode(value)]
	return ok
}

// Labels returns a copy of all labels in firmware order.
func (v OperationVocabulary) Labels() []string {
	return append([]string(nil), v.labels...)
}

// OperationFor resolves a targetTemp reading to its operation label, falling
// back to custom temperature.
func (v OperationVocabulary) OperationFor(targetTemp int) string {
	if label, ok := v.byCode[OperationCode(targetTemp)]; ok {
		return label
	}
	return v.byCode[OP_CUSTOM_TEMPERATURE]
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return int(v), nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("not an integer: %s", v)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", value)
	}
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unexpected type %T", value)
	}
}
