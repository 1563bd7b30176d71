package services

import (
	"context"
	"time"

	"github.com/google/logger"

	"easybet/internal/journal"
	"easybet/internal/models"
)

// ContractName is the name the ticket collection is published under.
const ContractName = "EasyBet Ticket"

// Options configures a LotteryService.
type Options struct {
	Admin   string
	Clock   func() time.Time
	Journal journal.Recorder
}

// LotteryService is the entry point of the lottery core. It gates
// privileged calls, dispatches to the components and journals every
// committed change.
type LotteryService struct {
	guard      *AccessGuard
	ledger     *Ledger
	registry   *LotteryRegistry
	tickets    *TicketStore
	market     *Marketplace
	settlement *SettlementEngine
	journal    journal.Recorder
	now        func() time.Time
}

// NewLotteryService creates and wires a LotteryService.
func NewLotteryService(opts Options) *LotteryService {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	rec := opts.Journal
	if rec == nil {
		rec = journal.NewMemory()
	}

	ledger := NewLedger()
	registry := NewLotteryRegistry(now)
	tickets := NewTicketStore(registry, ledger, now)
	return &LotteryService{
		guard:      NewAccessGuard(opts.Admin),
		ledger:     ledger,
		registry:   registry,
		tickets:    tickets,
		market:     NewMarketplace(registry, tickets, ledger, now),
		settlement: NewSettlementEngine(registry, tickets, ledger, now),
		journal:    rec,
		now:        now,
	}
}

// emitFunc journals an event from inside a component while it still holds
// the aggregate lock, so a lottery's events are sequenced in commit order.
type emitFunc func(journal.Event)

func (f emitFunc) emit(ev journal.Event) {
	if f != nil {
		f(ev)
	}
}

// emitter binds journaling to a call. Events without an actor are attributed
// to caller.
func (s *LotteryService) emitter(ctx context.Context, caller string) emitFunc {
	return func(ev journal.Event) {
		if ev.Actor == "" {
			ev.Actor = caller
		}
		s.record(ctx, ev)
	}
}

// record journals a committed change. The core state is authoritative, so a
// journal failure is logged and does not undo the operation. The change is
// already applied, so a cancelled request still gets its event.
func (s *LotteryService) record(ctx context.Context, ev journal.Event) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	if _, err := s.journal.Record(context.WithoutCancel(ctx), ev); err != nil {
		logger.Errorf("journal %s (lottery=%d ticket=%d): %v", ev.Kind, ev.LotteryID, ev.TicketID, err)
	}
}

// Name returns the published name of the ticket collection.
func (s *LotteryService) Name() string {
	return ContractName
}

// Admin returns the administrator address.
func (s *LotteryService) Admin() string {
	return s.guard.Admin()
}

// CreateLottery opens a new lottery. Administrator only.
func (s *LotteryService) CreateLottery(ctx context.Context, caller string, price models.Amount, maxTickets, durationSeconds uint64, description string) (models.Lottery, error) {
	caller = NormalizeAddress(caller)
	if err := s.guard.RequireAdmin(caller, "createLottery"); err != nil {
		return models.Lottery{}, err
	}
	return s.registry.Create(price, maxTickets, durationSeconds, description, s.emitter(ctx, caller))
}

// EndSales moves a lottery from Selling to Trading. Administrator only.
func (s *LotteryService) EndSales(ctx context.Context, caller string, lotteryID uint64) (models.Lottery, error) {
	caller = NormalizeAddress(caller)
	if err := s.guard.RequireAdmin(caller, "endSales"); err != nil {
		return models.Lottery{}, err
	}
	return s.registry.EndSales(lotteryID, s.emitter(ctx, caller))
}

// SettleLottery declares the winning number. Administrator only.
func (s *LotteryService) SettleLottery(ctx context.Context, caller string, lotteryID, winningNumber uint64) (models.Lottery, error) {
	caller = NormalizeAddress(caller)
	if err := s.guard.RequireAdmin(caller, "settleLottery"); err != nil {
		return models.Lottery{}, err
	}
	return s.settlement.Settle(lotteryID, winningNumber, s.emitter(ctx, caller))
}

// BuyTicket purchases number in a lottery with an attached payment.
func (s *LotteryService) BuyTicket(ctx context.Context, caller string, lotteryID, number uint64, payment models.Amount) (models.Ticket, error) {
	caller = NormalizeAddress(caller)
	if err := s.guard.RequireCaller(caller); err != nil {
		return models.Ticket{}, err
	}
	return s.tickets.Buy(caller, lotteryID, number, payment, s.emitter(ctx, caller))
}

// TradeTicket transfers an owned ticket to another address at price.
func (s *LotteryService) TradeTicket(ctx context.Context, caller string, ticketID uint64, to string, price, payment models.Amount) (models.Ticket, error) {
	caller = NormalizeAddress(caller)
	if err := s.guard.RequireCaller(caller); err != nil {
		return models.Ticket{}, err
	}
	return s.tickets.Trade(caller, ticketID, NormalizeAddress(to), price, payment, s.emitter(ctx, caller))
}

// ListTicket offers an owned ticket on the marketplace.
func (s *LotteryService) ListTicket(ctx context.Context, caller string, ticketID uint64, price models.Amount) (models.Listing, error) {
	caller = NormalizeAddress(caller)
	if err := s.guard.RequireCaller(caller); err != nil {
		return models.Listing{}, err
	}
	return s.market.List(caller, ticketID, price, s.emitter(ctx, caller))
}

// BuyListedTicket buys a ticket from its active listing.
func (s *LotteryService) BuyListedTicket(ctx context.Context, caller string, ticketID uint64, payment models.Amount) (models.Ticket, error) {
	caller = NormalizeAddress(caller)
	if err := s.guard.RequireCaller(caller); err != nil {
		return models.Ticket{}, err
	}
	t, _, err := s.market.Buy(caller, ticketID, payment, s.emitter(ctx, caller))
	return t, err
}

// CancelListing withdraws the caller's active listing.
func (s *LotteryService) CancelListing(ctx context.Context, caller string, ticketID uint64) error {
	caller = NormalizeAddress(caller)
	if err := s.guard.RequireCaller(caller); err != nil {
		return err
	}
	_, err := s.market.Cancel(caller, ticketID, s.emitter(ctx, caller))
	return err
}

// ClaimPrize pays the caller the prize share of a winning ticket.
func (s *LotteryService) ClaimPrize(ctx context.Context, caller string, ticketID uint64) (models.Amount, error) {
	caller = NormalizeAddress(caller)
	if err := s.guard.RequireCaller(caller); err != nil {
		return 0, err
	}
	return s.settlement.Claim(caller, ticketID, s.emitter(ctx, caller))
}

// Withdraw pays out the caller's whole withdrawable balance.
func (s *LotteryService) Withdraw(ctx context.Context, caller string) (models.Amount, error) {
	caller = NormalizeAddress(caller)
	if err := s.guard.RequireCaller(caller); err != nil {
		return 0, err
	}
	amount, err := s.ledger.Withdraw(caller)
	if err != nil {
		return 0, err
	}
	logger.Infof("%s withdrew %d", caller, amount)
	s.record(ctx, journal.Event{Kind: journal.KindWithdrawn, Actor: caller, Amount: amount})
	return amount, nil
}

// GetLottery returns a lottery by id.
func (s *LotteryService) GetLottery(id uint64) (models.Lottery, error) {
	return s.registry.Get(id)
}

// GetLotteries returns every lottery in id order.
func (s *LotteryService) GetLotteries() []models.Lottery {
	return s.registry.List()
}

// GetTicket returns a ticket by id.
func (s *LotteryService) GetTicket(id uint64) (models.Ticket, error) {
	return s.tickets.Get(id)
}

// GetUserTickets returns the ids of tickets currently owned by addr.
func (s *LotteryService) GetUserTickets(addr string) []uint64 {
	return s.tickets.UserTickets(NormalizeAddress(addr))
}

// GetLotteryTickets returns the ids of tickets minted in a lottery.
func (s *LotteryService) GetLotteryTickets(lotteryID uint64) ([]uint64, error) {
	return s.tickets.LotteryTickets(lotteryID)
}

// GetLotteryTicketRecords returns the tickets minted in a lottery.
func (s *LotteryService) GetLotteryTicketRecords(lotteryID uint64) ([]models.Ticket, error) {
	return s.tickets.LotteryTicketRecords(lotteryID)
}

// GetWinningTickets returns the winning ticket ids of a lottery.
func (s *LotteryService) GetWinningTickets(lotteryID uint64) ([]uint64, error) {
	return s.settlement.WinningTickets(lotteryID)
}

// GetActiveListings returns the ids of tickets with a live listing.
func (s *LotteryService) GetActiveListings() []uint64 {
	return s.market.Active()
}

// GetActiveListingRecords returns every live listing.
func (s *LotteryService) GetActiveListingRecords() []models.Listing {
	return s.market.ActiveListings()
}

// GetListing returns the listing recorded for a ticket.
func (s *LotteryService) GetListing(ticketID uint64) (models.Listing, error) {
	return s.market.Get(ticketID)
}

// GetBalance returns all value held by the system.
func (s *LotteryService) GetBalance() models.Amount {
	return s.ledger.Total()
}

// BalanceOf returns the withdrawable balance of addr.
func (s *LotteryService) BalanceOf(addr string) models.Amount {
	return s.ledger.Balance(NormalizeAddress(addr))
}

// Escrowed returns the amount still held for a lottery's prize pool.
func (s *LotteryService) Escrowed(lotteryID uint64) models.Amount {
	return s.ledger.Escrowed(lotteryID)
}

// Events lists journaled events.
func (s *LotteryService) Events(ctx context.Context, filter journal.Filter) ([]journal.Event, error) {
	return s.journal.List(ctx, filter)
}

// SweepReport summarizes one freshness sweep.
type SweepReport struct {
	ExpiredSales   []uint64 `json:"expiredSales"`
	PrunedListings int      `json:"prunedListings"`
}

// Sweep reports lotteries still Selling past their end time and clears the
// flag of listings that are stale by derivation. It changes no observable
// outcome: expired lotteries keep rejecting purchases and stale listings
// were already inactive.
func (s *LotteryService) Sweep(ctx context.Context) SweepReport {
	report := SweepReport{ExpiredSales: []uint64{}}
	now := s.now()
	for _, l := range s.registry.List() {
		if err := ctx.Err(); err != nil {
			return report
		}
		if l.State == models.StateSelling && now.After(l.EndTime) {
			report.ExpiredSales = append(report.ExpiredSales, l.ID)
		}
	}
	report.PrunedListings = s.market.Prune()
	if len(report.ExpiredSales) > 0 {
		logger.Infof("lotteries past their sales window awaiting endSales: %v", report.ExpiredSales)
	}
	return report
}
