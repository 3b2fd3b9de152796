package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const insertJournal = `
		INSERT INTO command_journal (id, occurred_at, request, command, args, outcome, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

const selectJournal = `
		SELECT id, occurred_at, request, command, args, outcome, reason
		FROM command_journal
		ORDER BY occurred_at DESC, rowid DESC
		LIMIT ?
	`

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestAppendSentCommand(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewJournalSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta(insertJournal)).
		WithArgs(sqlmock.AnyArg(), "2026-03-01 10:20:30",
			"set_temperature", domain.CMD_SET_TEMP, "[45]", domain.OUTCOME_SENT, nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Append(testContext(t), domain.JournalEntry{
		OccurredAt: time.Date(2026, 3, 1, 10, 20, 30, 0, time.UTC),
		Request:    "set_temperature",
		Command:    domain.CMD_SET_TEMP,
		Args:       []int{45},
		Outcome:    domain.OUTCOME_SENT,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendSkippedCommandHasNoCommandOrArgs(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(insertJournal)).
		WithArgs("fixed-id", sqlmock.AnyArg(),
			"turn_on", nil, nil, domain.OUTCOME_SKIPPED, "washStatus != 0",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewJournalSQLite(db).Append(testContext(t), domain.JournalEntry{
		Id:      "fixed-id",
		Request: "turn_on",
		Outcome: domain.OUTCOME_SKIPPED,
		Reason:  "washStatus != 0",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendDBError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("disk I/O error")
	mock.ExpectExec(regexp.QuoteMeta(insertJournal)).WillReturnError(boom)

	err = NewJournalSQLite(db).Append(testContext(t), domain.JournalEntry{Request: "turn_off", Outcome: domain.OUTCOME_FAILED})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "occurred_at", "request", "command", "args", "outcome", "reason"}).
		AddRow("b", "2026-03-01 10:21:00", "turn_off", domain.CMD_SET_POWER, "[0]", domain.OUTCOME_SENT, nil).
		AddRow("a", "2026-03-01T10:20:00Z", "turn_on", nil, nil, domain.OUTCOME_SKIPPED, "washStatus != 0")
	mock.ExpectQuery(regexp.QuoteMeta(selectJournal)).WithArgs(10).WillReturnRows(rows)

	entries, err := NewJournalSQLite(db).List(testContext(t), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "b", entries[0].Id)
	assert.Equal(t, []int{0}, entries[0].Args)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 21, 0, 0, time.UTC), entries[0].OccurredAt)
	assert.Equal(t, "", entries[1].Command)
	assert.Nil(t, entries[1].Args)
	assert.Equal(t, "washStatus != 0", entries[1].Reason)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 20, 0, 0, time.UTC), entries[1].OccurredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListLimitIsClamped(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	columns := []string{"id", "occurred_at", "request", "command", "args", "outcome", "reason"}
	mock.ExpectQuery(regexp.QuoteMeta(selectJournal)).WithArgs(DEFAULT_LIST_LIMIT).WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectQuery(regexp.QuoteMeta(selectJournal)).WithArgs(MAX_LIST_LIMIT).WillReturnRows(sqlmock.NewRows(columns))

	repo := NewJournalSQLite(db)
	entries, err := repo.List(testContext(t), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = repo.List(testContext(t), 1_000_000)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
