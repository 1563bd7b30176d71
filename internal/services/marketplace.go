package services

import (
	"slices"
	"time"

	"github.com/google/logger"

	apperrors "easybet/internal/errors"
	"easybet/internal/journal"
	"easybet/internal/models"
)

// Marketplace owns listings layered on tickets of lotteries in Trading.
// It never sweeps stale listings itself; staleness is derived on read.
type Marketplace struct {
	registry *LotteryRegistry
	tickets  *TicketStore
	ledger   *Ledger
	now      func() time.Time
}

// NewMarketplace creates a Marketplace over the given stores.
func NewMarketplace(registry *LotteryRegistry, tickets *TicketStore, ledger *Ledger, now func() time.Time) *Marketplace {
	if now == nil {
		now = time.Now
	}
	return &Marketplace{registry: registry, tickets: tickets, ledger: ledger, now: now}
}

// List offers an owned ticket for sale at price.
func (m *Marketplace) List(seller string, ticketID uint64, price models.Amount, emit emitFunc) (models.Listing, error) {
	if price <= 0 {
		return models.Listing{}, apperrors.New(apperrors.CodeInvalidArgument, "price must be greater than 0")
	}
	agg, err := m.tickets.locate(ticketID)
	if err != nil {
		return models.Listing{}, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()

	if agg.lottery.State != models.StateTrading {
		return models.Listing{}, apperrors.Newf(apperrors.CodeInvalidState, "lottery %d is %s, expected %s",
			agg.lottery.ID, agg.lottery.State, models.StateTrading)
	}
	if agg.tickets[ticketID].Owner != seller {
		return models.Listing{}, apperrors.Newf(apperrors.CodeNotOwner, "ticket %d is not owned by %s", ticketID, seller)
	}
	if agg.listingActive(agg.listings[ticketID]) {
		return models.Listing{}, apperrors.Newf(apperrors.CodeAlreadyListed, "ticket %d is already listed", ticketID)
	}

	listing := &models.Listing{
		TicketID:    ticketID,
		Seller:      seller,
		Price:       price,
		ListingTime: m.now(),
		IsActive:    true,
	}
	agg.listings[ticketID] = listing
	emit.emit(journal.Event{Kind: journal.KindTicketListed, LotteryID: agg.lottery.ID, TicketID: ticketID,
		Actor: seller, Amount: price})
	logger.Infof("ticket %d listed by %s for %d", ticketID, seller, price)
	return *listing, nil
}

// Buy purchases a listed ticket. The listing price is credited to the seller.
// It returns the ticket after the transfer and the listing that was filled.
func (m *Marketplace) Buy(buyer string, ticketID uint64, payment models.Amount, emit emitFunc) (models.Ticket, models.Listing, error) {
	agg, err := m.tickets.locate(ticketID)
	if err != nil {
		return models.Ticket{}, models.Listing{}, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()

	listing := agg.listings[ticketID]
	if !agg.listingActive(listing) {
		return models.Ticket{}, models.Listing{}, apperrors.Newf(apperrors.CodeNotListed, "ticket %d is not listed", ticketID)
	}
	if payment != listing.Price {
		return models.Ticket{}, models.Listing{}, apperrors.Newf(apperrors.CodeIncorrectPayment, "paid %d, listing price is %d", payment, listing.Price)
	}
	if buyer == listing.Seller {
		return models.Ticket{}, models.Listing{}, apperrors.Newf(apperrors.CodeSelfTrade, "%s cannot buy their own ticket %d", buyer, ticketID)
	}
	if err := m.ledger.Credit(listing.Seller, listing.Price); err != nil {
		return models.Ticket{}, models.Listing{}, err
	}

	ticket := agg.tickets[ticketID]
	filled := *listing
	agg.transfer(ticket, buyer)
	emit.emit(journal.Event{Kind: journal.KindTicketBought, LotteryID: agg.lottery.ID, TicketID: ticketID,
		Actor: buyer, Counterparty: filled.Seller, Amount: filled.Price})
	logger.Infof("listed ticket %d bought: %s -> %s price=%d", ticketID, filled.Seller, buyer, filled.Price)
	return *ticket, filled, nil
}

// Cancel withdraws the seller's active listing.
func (m *Marketplace) Cancel(seller string, ticketID uint64, emit emitFunc) (models.Listing, error) {
	agg, err := m.tickets.locate(ticketID)
	if err != nil {
		return models.Listing{}, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()

	listing := agg.listings[ticketID]
	if listing == nil {
		return models.Listing{}, apperrors.Newf(apperrors.CodeNotListed, "ticket %d is not listed", ticketID)
	}
	if listing.Seller != seller {
		return models.Listing{}, apperrors.Newf(apperrors.CodeNotSeller, "listing of ticket %d belongs to %s", ticketID, listing.Seller)
	}
	if !agg.listingActive(listing) {
		return models.Listing{}, apperrors.Newf(apperrors.CodeNotListed, "ticket %d is not listed", ticketID)
	}
	listing.IsActive = false
	emit.emit(journal.Event{Kind: journal.KindListingCancelled, LotteryID: agg.lottery.ID, TicketID: ticketID, Actor: seller})
	logger.Infof("listing of ticket %d cancelled by %s", ticketID, seller)
	return *listing, nil
}

// Get returns the listing recorded for a ticket. IsActive reflects staleness.
func (m *Marketplace) Get(ticketID uint64) (models.Listing, error) {
	agg, err := m.tickets.locate(ticketID)
	if err != nil {
		return models.Listing{}, err
	}
	agg.mu.RLock()
	defer agg.mu.RUnlock()

	listing := agg.listings[ticketID]
	if listing == nil {
		return models.Listing{}, apperrors.Newf(apperrors.CodeNotFound, "ticket %d has never been listed", ticketID)
	}
	out := *listing
	out.IsActive = agg.listingActive(listing)
	return out, nil
}

// Active returns the ids of tickets with a live listing, ascending.
func (m *Marketplace) Active() []uint64 {
	ids := []uint64{}
	for _, listing := range m.ActiveListings() {
		ids = append(ids, listing.TicketID)
	}
	return ids
}

// ActiveListings returns copies of every live listing ordered by ticket id.
func (m *Marketplace) ActiveListings() []models.Listing {
	out := []models.Listing{}
	for _, agg := range m.registry.all() {
		agg.mu.RLock()
		for _, listing := range agg.listings {
			if agg.listingActive(listing) {
				out = append(out, *listing)
			}
		}
		agg.mu.RUnlock()
	}
	slices.SortFunc(out, func(a, b models.Listing) int {
		switch {
		case a.TicketID < b.TicketID:
			return -1
		case a.TicketID > b.TicketID:
			return 1
		}
		return 0
	})
	return out
}

// Prune clears the flag of listings that are only stale by derivation.
// It returns how many listings were deactivated.
func (m *Marketplace) Prune() int {
	pruned := 0
	for _, agg := range m.registry.all() {
		agg.mu.Lock()
		for _, listing := range agg.listings {
			if listing.IsActive && !agg.listingActive(listing) {
				listing.IsActive = false
				pruned++
			}
		}
		agg.mu.Unlock()
	}
	return pruned
}
