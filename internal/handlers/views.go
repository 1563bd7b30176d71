package handlers

import (
	"time"

	"easybet/internal/amount"
	"easybet/internal/journal"
	"easybet/internal/models"
)

// Views render amounts as decimal strings in the configured unit.

type lotteryView struct {
	LotteryID      uint64    `json:"lotteryId"`
	TicketPrice    string    `json:"ticketPrice"`
	MaxTickets     uint64    `json:"maxTickets"`
	SoldTickets    uint64    `json:"soldTickets"`
	TotalPrizePool string    `json:"totalPrizePool"`
	WinningNumber  uint64    `json:"winningNumber"`
	WinningTickets []uint64  `json:"winningTickets"`
	State          string    `json:"state"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	SettleTime     time.Time `json:"settleTime"`
	Description    string    `json:"description"`
}

type ticketView struct {
	TicketID      uint64    `json:"ticketId"`
	LotteryID     uint64    `json:"lotteryId"`
	TicketNumber  uint64    `json:"ticketNumber"`
	Owner         string    `json:"owner"`
	PurchasePrice string    `json:"purchasePrice"`
	PurchaseTime  time.Time `json:"purchaseTime"`
	IsWinning     bool      `json:"isWinning"`
}

type listingView struct {
	TicketID    uint64    `json:"ticketId"`
	Seller      string    `json:"seller"`
	Price       string    `json:"price"`
	ListingTime time.Time `json:"listingTime"`
	IsActive    bool      `json:"isActive"`
}

type eventView struct {
	ID           string       `json:"id"`
	Seq          uint64       `json:"seq"`
	Kind         journal.Kind `json:"kind"`
	LotteryID    uint64       `json:"lotteryId,omitempty"`
	TicketID     uint64       `json:"ticketId,omitempty"`
	Number       uint64       `json:"number,omitempty"`
	Actor        string       `json:"actor,omitempty"`
	Counterparty string       `json:"counterparty,omitempty"`
	Amount       string       `json:"amount"`
	Tickets      []uint64     `json:"tickets,omitempty"`
	At           time.Time    `json:"at"`
}

func newLotteryView(u amount.Unit, l models.Lottery) lotteryView {
	winners := l.WinningTickets
	if winners == nil {
		winners = []uint64{}
	}
	return lotteryView{
		LotteryID:      l.ID,
		TicketPrice:    u.Format(l.TicketPrice),
		MaxTickets:     l.MaxTickets,
		SoldTickets:    l.SoldTickets,
		TotalPrizePool: u.Format(l.TotalPrizePool),
		WinningNumber:  l.WinningNumber,
		WinningTickets: winners,
		State:          l.State.String(),
		StartTime:      l.StartTime,
		EndTime:        l.EndTime,
		SettleTime:     l.SettleTime,
		Description:    l.Description,
	}
}

func newTicketView(u amount.Unit, t models.Ticket) ticketView {
	return ticketView{
		TicketID:      t.ID,
		LotteryID:     t.LotteryID,
		TicketNumber:  t.Number,
		Owner:         t.Owner,
		PurchasePrice: u.Format(t.PurchasePrice),
		PurchaseTime:  t.PurchaseTime,
		IsWinning:     t.IsWinning,
	}
}

func newListingView(u amount.Unit, l models.Listing) listingView {
	return listingView{
		TicketID:    l.TicketID,
		Seller:      l.Seller,
		Price:       u.Format(l.Price),
		ListingTime: l.ListingTime,
		IsActive:    l.IsActive,
	}
}

func newEventView(u amount.Unit, ev journal.Event) eventView {
	return eventView{
		ID:           ev.ID,
		Seq:          ev.Seq,
		Kind:         ev.Kind,
		LotteryID:    ev.LotteryID,
		TicketID:     ev.TicketID,
		Number:       ev.Number,
		Actor:        ev.Actor,
		Counterparty: ev.Counterparty,
		Amount:       u.Format(ev.Amount),
		Tickets:      ev.Tickets,
		At:           ev.At,
	}
}
