package services

import (
	"time"

	"github.com/google/logger"

	apperrors "easybet/internal/errors"
	"easybet/internal/journal"
	"easybet/internal/models"
)

// SettlementEngine declares winners and pays prize shares out of escrow.
//
// A ticket's IsWinning flag is both the eligibility check and the replay
// guard: it is set at settlement and cleared by the first successful claim.
// The remainder of an uneven split, and the whole pool of a lottery nobody
// won, stay in escrow; there is no operation that recovers them.
type SettlementEngine struct {
	registry *LotteryRegistry
	tickets  *TicketStore
	ledger   *Ledger
	now      func() time.Time
}

// NewSettlementEngine creates a SettlementEngine over the given stores.
func NewSettlementEngine(registry *LotteryRegistry, tickets *TicketStore, ledger *Ledger, now func() time.Time) *SettlementEngine {
	if now == nil {
		now = time.Now
	}
	return &SettlementEngine{registry: registry, tickets: tickets, ledger: ledger, now: now}
}

// Settle records the winning number of a lottery in Trading, flags the
// matching tickets and moves the lottery to Settled.
func (e *SettlementEngine) Settle(lotteryID, winningNumber uint64, emit emitFunc) (models.Lottery, error) {
	agg, err := e.registry.lookup(lotteryID)
	if err != nil {
		return models.Lottery{}, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()

	l := &agg.lottery
	if l.State != models.StateTrading {
		return models.Lottery{}, apperrors.Newf(apperrors.CodeInvalidState, "lottery %d is %s, expected %s",
			lotteryID, l.State, models.StateTrading)
	}
	if winningNumber == 0 || winningNumber > l.MaxTickets {
		return models.Lottery{}, apperrors.Newf(apperrors.CodeInvalidNumber, "winning number %d is outside 1..%d", winningNumber, l.MaxTickets)
	}

	winners := e.winners(agg, winningNumber)
	for _, id := range winners {
		agg.tickets[id].IsWinning = true
	}
	if err := agg.advance(models.StateTrading, models.StateSettled); err != nil {
		return models.Lottery{}, err
	}
	l.WinningNumber = winningNumber
	l.WinningTickets = winners
	l.SettleTime = e.now()
	emit.emit(journal.Event{Kind: journal.KindLotterySettled, LotteryID: lotteryID, Number: winningNumber,
		Tickets: winners, Amount: l.TotalPrizePool})

	if len(winners) == 0 {
		logger.Warningf("lottery %d settled on unsold number %d; prize pool %d stays escrowed", lotteryID, winningNumber, l.TotalPrizePool)
	} else {
		logger.Infof("lottery %d settled: number=%d winners=%v", lotteryID, winningNumber, winners)
	}
	return agg.snapshot(), nil
}

// winners returns the ids of tickets holding number, in mint order.
func (e *SettlementEngine) winners(agg *lotteryAggregate, number uint64) []uint64 {
	winners := []uint64{}
	for _, id := range agg.order {
		if agg.tickets[id].Number == number {
			winners = append(winners, id)
		}
	}
	return winners
}

// Share returns the amount each winning ticket of a lottery is paid.
func Share(pool models.Amount, winners int) models.Amount {
	if winners <= 0 {
		return 0
	}
	return pool / models.Amount(winners)
}

// Claim pays the current owner of a winning ticket its share of the pool.
func (e *SettlementEngine) Claim(claimant string, ticketID uint64, emit emitFunc) (models.Amount, error) {
	agg, err := e.tickets.locate(ticketID)
	if err != nil {
		return 0, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()

	l := &agg.lottery
	if l.State != models.StateSettled {
		return 0, apperrors.Newf(apperrors.CodeNotSettled, "lottery %d is %s", l.ID, l.State)
	}
	ticket := agg.tickets[ticketID]
	if ticket.Owner != claimant {
		return 0, apperrors.Newf(apperrors.CodeNotOwner, "ticket %d is not owned by %s", ticketID, claimant)
	}
	if !ticket.IsWinning {
		return 0, apperrors.Newf(apperrors.CodeNotWinning, "ticket %d has no prize to claim", ticketID)
	}

	share := Share(l.TotalPrizePool, len(l.WinningTickets))
	if err := e.ledger.Release(l.ID, claimant, share); err != nil {
		return 0, err
	}
	ticket.IsWinning = false
	emit.emit(journal.Event{Kind: journal.KindPrizeClaimed, LotteryID: l.ID, TicketID: ticketID,
		Actor: claimant, Amount: share})
	logger.Infof("prize claimed: ticket=%d claimant=%s amount=%d", ticketID, claimant, share)
	return share, nil
}

// WinningTickets returns the winning ticket ids of a lottery.
func (e *SettlementEngine) WinningTickets(lotteryID uint64) ([]uint64, error) {
	l, err := e.registry.Get(lotteryID)
	if err != nil {
		return nil, err
	}
	return l.WinningTickets, nil
}
