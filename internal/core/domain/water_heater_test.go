package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocabularyRoundTrip(t *testing.T) {
	for _, op := range operations {
		label, ok := Vocabulary.Label(op.Code)
		require.True(t, ok)
		code, ok := Vocabulary.Code(label)
		require.True(t, ok)
		assert.Equal(t, op.Code, code)
	}
	_, ok := Vocabulary.Code("boost")
	assert.False(t, ok)
}

func TestVocabularyLabelsAreCopied(t *testing.T) {
	labels := Vocabulary.Labels()
	labels[0] = "changed"
	assert.Equal(t, "custom temperature", Vocabulary.Labels()[0])
	assert.Len(t, Vocabulary.Labels(), 9)
}

func TestOperationFor(t *testing.T) {
	assert.Equal(t, "kitchen", Vocabulary.OperationFor(36))
	assert.Equal(t, "elderly wash", Vocabulary.OperationFor(42))
	assert.Equal(t, "custom temperature", Vocabulary.OperationFor(47))
	assert.Equal(t, "custom temperature", Vocabulary.OperationFor(99))
	assert.Equal(t, "power off", Vocabulary.OperationFor(104))

	assert.True(t, Vocabulary.IsOperationCode(40))
	assert.False(t, Vocabulary.IsOperationCode(41))
}

func TestSnapshotFromJSONNumbers(t *testing.T) {
	var values []any
	decoder := json.NewDecoder(strings.NewReader(`[2, 4, 38, 40, 0, 0, "0-6-0-8-0", "0-19-0-21-0", "0-0-0-0-0"]`))
	decoder.UseNumber()
	require.NoError(t, decoder.Decode(&values))

	s, err := SnapshotFromValues(values)

	require.NoError(t, err)
	assert.Equal(t, 2, s.WashStatus)
	assert.Equal(t, 4, s.Velocity)
	assert.Equal(t, 38, s.WaterTemp)
	assert.Equal(t, 40, s.TargetTemp)
	assert.Equal(t, "0-19-0-21-0", s.PreHeatTime2)
	assert.True(t, s.Fetched)
	assert.Equal(t, DISPLAY_STATE_RUNNING, s.DisplayState())
}

func TestSnapshotFromValuesErrors(t *testing.T) {
	_, err := SnapshotFromValues([]any{1, 2, 3})
	assert.Error(t, err)

	_, err = SnapshotFromValues([]any{1, 0, 20.5, 47, 0, 0, "", "", ""})
	assert.ErrorContains(t, err, "waterTemp")

	_, err = SnapshotFromValues([]any{1, 0, 20, 47, 0, 0, 7, "", ""})
	assert.ErrorContains(t, err, "preHeatTime1")
}

func TestCommandResultOutcome(t *testing.T) {
	assert.Equal(t, OUTCOME_SENT, SentCommand("turn_on", CMD_SET_POWER, 1).Outcome())
	assert.Equal(t, OUTCOME_SKIPPED, SkippedCommand("turn_on", "washStatus != 0").Outcome())
}
