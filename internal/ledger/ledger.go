package ledger

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Snapshot is an employee's leave counters after a delta is applied.
type Snapshot struct {
	PaidBalance int
	UnpaidTaken int
}

// BalanceStore is the slice of the employee store the ledger mutates.
// Implementations are expected to run inside the caller's transaction.
type BalanceStore interface {
	GetBalances(ctx context.Context, employeeID string) (Snapshot, error)
	SaveBalances(ctx context.Context, employeeID string, snap Snapshot) error
}

// Delta is a signed adjustment to the paid balance and unpaid accrual.
type Delta struct {
	Paid   int
	Unpaid int
}

// RequestDelta is the adjustment for a new leave request of the given
// working-day count: paid leave debits the balance, every other type
// accrues unpaid days.
func RequestDelta(paid bool, days int) Delta {
	if paid {
		return Delta{Paid: -days}
	}
	return Delta{Unpaid: days}
}

// Reversed undoes a delta, used when a request is cancelled, rejected,
// or replaced during an edit.
func (d Delta) Reversed() Delta {
	return Delta{Paid: -d.Paid, Unpaid: -d.Unpaid}
}

// Ledger applies balance deltas with at-most-one in-flight mutation per
// employee id. Operations on different employees proceed in parallel.
type Ledger struct {
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	logger *zap.Logger
}

func New(logger ...*zap.Logger) *Ledger {
	l := zap.L().Named("ledger")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("ledger")
	}
	return &Ledger{
		locks:  make(map[string]*sync.Mutex),
		logger: l,
	}
}

// Acquire takes the per-employee lock and returns its release func.
// Callers hold it across the whole check-then-mutate sequence, not just
// the store write, so balance reads cannot go stale mid-operation.
func (l *Ledger) Acquire(employeeID string) func() {
	l.mu.Lock()
	emu, ok := l.locks[employeeID]
	if !ok {
		emu = &sync.Mutex{}
		l.locks[employeeID] = emu
	}
	l.mu.Unlock()

	emu.Lock()
	return emu.Unlock
}

// ApplyDelta adjusts the employee's counters and persists the result.
// The unpaid accrual is clamped at zero; the paid balance is not, since
// insufficiency is a precondition the state machine enforces before the
// delta is computed.
func (l *Ledger) ApplyDelta(ctx context.Context, store BalanceStore, employeeID string, d Delta) (Snapshot, error) {
	snap, err := store.GetBalances(ctx, employeeID)
	if err != nil {
		return Snapshot{}, err
	}

	snap.PaidBalance += d.Paid
	snap.UnpaidTaken += d.Unpaid
	if snap.UnpaidTaken < 0 {
		snap.UnpaidTaken = 0
	}

	if err := store.SaveBalances(ctx, employeeID, snap); err != nil {
		return Snapshot{}, err
	}

	l.logger.Debug("balance delta applied",
		zap.String("employee_id", employeeID),
		zap.Int("paid_delta", d.Paid),
		zap.Int("unpaid_delta", d.Unpaid),
		zap.Int("paid_balance", snap.PaidBalance),
		zap.Int("unpaid_taken", snap.UnpaidTaken),
	)
	return snap, nil
}
