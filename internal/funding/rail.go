package funding

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rail represents a connector to an external banking rail that moves fiat in
// and out of the exchange.
type Rail interface {
	AuthorizeDeposit(ctx context.Context, input RailRequest) (RailDecision, error)
	AuthorizeWithdrawal(ctx context.Context, input RailRequest) (RailDecision, error)
}

// RailDecision captures the simulated response from the rail.
type RailDecision struct {
	Reference string
	Status    string
}

// RailRequest carries the wallet and fiat amount being moved.
type RailRequest struct {
	Address string
	Amount  decimal.Decimal
}

// StaticRail simulates a rail that approves every request. No funds move
// outside the ledger.
type StaticRail struct{}

// AuthorizeDeposit approves the deposit with a synthetic reference.
func (StaticRail) AuthorizeDeposit(_ context.Context, _ RailRequest) (RailDecision, error) {
	return RailDecision{Reference: uuid.NewString(), Status: "approved"}, nil
}

// AuthorizeWithdrawal approves the withdrawal with a synthetic reference.
func (StaticRail) AuthorizeWithdrawal(_ context.Context, _ RailRequest) (RailDecision, error) {
	return RailDecision{Reference: uuid.NewString(), Status: "approved"}, nil
}
