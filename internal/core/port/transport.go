package port

import (
	"context"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
)

// Transport is the device RPC boundary. Implementations own their timeouts
// and retry policy; both calls fail with an error when the device cannot be
// reached.
type Transport interface {
	// Query returns one value per requested field, in request order.
	Query(ctx context.Context, fields []string) ([]any, error)
	Command(ctx context.Context, name string, args []any) error
}

// DeviceIdentity reads the model and firmware version the device reports.
type DeviceIdentity interface {
	Identify(ctx context.Context) (model string, firmware string, err error)
}

type CommandJournal interface {
	Append(ctx context.Context, entry domain.JournalEntry) error
	List(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}

type WaterHeaterMetrics interface {
	ObserveRefresh(view domain.WaterHeaterView, err error)
	ObserveCommand(result domain.CommandResult, err error)
}
