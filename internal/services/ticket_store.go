package services

import (
	"slices"
	"sync"
	"time"

	"github.com/google/logger"

	apperrors "easybet/internal/errors"
	"easybet/internal/journal"
	"easybet/internal/models"
)

// TicketStore owns ticket records, enforces number uniqueness per lottery
// and keeps the process-wide ticket id counter.
type TicketStore struct {
	registry *LotteryRegistry
	ledger   *Ledger
	now      func() time.Time

	mu     sync.RWMutex
	nextID uint64
	index  map[uint64]uint64 // ticket id -> lottery id
}

// NewTicketStore creates a TicketStore backed by registry and ledger.
func NewTicketStore(registry *LotteryRegistry, ledger *Ledger, now func() time.Time) *TicketStore {
	if now == nil {
		now = time.Now
	}
	return &TicketStore{
		registry: registry,
		ledger:   ledger,
		now:      now,
		index:    make(map[uint64]uint64),
	}
}

// Buy mints the ticket holding number in a lottery for buyer. payment must
// equal the ticket price exactly; it is escrowed into the prize pool.
func (s *TicketStore) Buy(buyer string, lotteryID, number uint64, payment models.Amount, emit emitFunc) (models.Ticket, error) {
	agg, err := s.registry.lookup(lotteryID)
	if err != nil {
		return models.Ticket{}, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()

	now := s.now()
	l := &agg.lottery
	if l.State != models.StateSelling {
		return models.Ticket{}, apperrors.Newf(apperrors.CodeInvalidState, "lottery %d is %s, expected %s",
			lotteryID, l.State, models.StateSelling)
	}
	if !l.SalesOpen(now) {
		return models.Ticket{}, apperrors.Newf(apperrors.CodeSalesEnded, "lottery %d sales ended at %s",
			lotteryID, l.EndTime.Format(time.RFC3339))
	}
	if number == 0 || number > l.MaxTickets {
		return models.Ticket{}, apperrors.Newf(apperrors.CodeInvalidNumber, "number %d is outside 1..%d", number, l.MaxTickets)
	}
	if _, taken := agg.numbers[number]; taken {
		return models.Ticket{}, apperrors.Newf(apperrors.CodeNumberTaken, "number %d already sold in lottery %d", number, lotteryID)
	}
	if payment != l.TicketPrice {
		return models.Ticket{}, apperrors.Newf(apperrors.CodeIncorrectPayment, "paid %d, ticket price is %d", payment, l.TicketPrice)
	}
	// Escrow is the only step that can still fail, so it runs before any
	// aggregate field changes.
	if err := s.ledger.Escrow(lotteryID, payment); err != nil {
		return models.Ticket{}, err
	}

	s.mu.Lock()
	s.nextID++
	ticket := &models.Ticket{
		ID:            s.nextID,
		LotteryID:     lotteryID,
		Number:        number,
		Owner:         buyer,
		PurchasePrice: payment,
		PurchaseTime:  now,
	}
	s.index[ticket.ID] = lotteryID
	s.mu.Unlock()

	agg.tickets[ticket.ID] = ticket
	agg.numbers[number] = ticket.ID
	agg.order = append(agg.order, ticket.ID)
	l.SoldTickets++
	l.TotalPrizePool += payment
	emit.emit(journal.Event{Kind: journal.KindTicketPurchased, LotteryID: lotteryID, TicketID: ticket.ID,
		Number: number, Actor: buyer, Amount: payment})

	logger.Infof("ticket %d minted: lottery=%d number=%d owner=%s", ticket.ID, lotteryID, number, buyer)
	return *ticket, nil
}

// Trade transfers a ticket directly from its owner to another address.
// The price is credited to the seller; any active listing on the ticket is
// withdrawn.
func (s *TicketStore) Trade(seller string, ticketID uint64, to string, price, payment models.Amount, emit emitFunc) (models.Ticket, error) {
	agg, err := s.locate(ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()

	if agg.lottery.State != models.StateTrading {
		return models.Ticket{}, apperrors.Newf(apperrors.CodeInvalidState, "lottery %d is %s, expected %s",
			agg.lottery.ID, agg.lottery.State, models.StateTrading)
	}
	ticket := agg.tickets[ticketID]
	if ticket.Owner != seller {
		return models.Ticket{}, apperrors.Newf(apperrors.CodeNotOwner, "ticket %d is not owned by %s", ticketID, seller)
	}
	if payment != price {
		return models.Ticket{}, apperrors.Newf(apperrors.CodeIncorrectPayment, "paid %d, trade price is %d", payment, price)
	}
	if to == "" {
		return models.Ticket{}, apperrors.New(apperrors.CodeInvalidArgument, "recipient address is required")
	}
	if err := s.ledger.Credit(seller, price); err != nil {
		return models.Ticket{}, err
	}

	agg.transfer(ticket, to)
	emit.emit(journal.Event{Kind: journal.KindTicketTraded, LotteryID: agg.lottery.ID, TicketID: ticketID,
		Actor: seller, Counterparty: to, Amount: price})
	logger.Infof("ticket %d traded: %s -> %s price=%d", ticketID, seller, to, price)
	return *ticket, nil
}

// transfer changes ownership and withdraws any listing made by the previous
// owner. The caller holds the aggregate lock.
func (a *lotteryAggregate) transfer(t *models.Ticket, to string) {
	t.Owner = to
	if listing, ok := a.listings[t.ID]; ok {
		listing.IsActive = false
	}
}

// Get returns a copy of a ticket.
func (s *TicketStore) Get(ticketID uint64) (models.Ticket, error) {
	agg, err := s.locate(ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	agg.mu.RLock()
	defer agg.mu.RUnlock()
	return *agg.tickets[ticketID], nil
}

// UserTickets returns the ids of tickets currently owned by owner, ascending.
func (s *TicketStore) UserTickets(owner string) []uint64 {
	ids := []uint64{}
	for _, agg := range s.registry.all() {
		agg.mu.RLock()
		for _, id := range agg.order {
			if agg.tickets[id].Owner == owner {
				ids = append(ids, id)
			}
		}
		agg.mu.RUnlock()
	}
	slices.Sort(ids)
	return ids
}

// LotteryTickets returns the ids of tickets minted in a lottery, in mint order.
func (s *TicketStore) LotteryTickets(lotteryID uint64) ([]uint64, error) {
	agg, err := s.registry.lookup(lotteryID)
	if err != nil {
		return nil, err
	}
	agg.mu.RLock()
	defer agg.mu.RUnlock()
	return append([]uint64{}, agg.order...), nil
}

// LotteryTicketRecords returns copies of the tickets minted in a lottery.
func (s *TicketStore) LotteryTicketRecords(lotteryID uint64) ([]models.Ticket, error) {
	agg, err := s.registry.lookup(lotteryID)
	if err != nil {
		return nil, err
	}
	agg.mu.RLock()
	defer agg.mu.RUnlock()

	out := make([]models.Ticket, 0, len(agg.order))
	for _, id := range agg.order {
		out = append(out, *agg.tickets[id])
	}
	return out, nil
}

// locate returns the aggregate of the lottery a ticket belongs to.
func (s *TicketStore) locate(ticketID uint64) (*lotteryAggregate, error) {
	s.mu.RLock()
	lotteryID, ok := s.index[ticketID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "ticket %d does not exist", ticketID)
	}
	return s.registry.lookup(lotteryID)
}
