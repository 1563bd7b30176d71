// Package journal records the domain events emitted by the lottery core.
package journal

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"easybet/internal/models"
)

// Kind names a domain event.
type Kind string

const (
	KindLotteryCreated   Kind = "LotteryCreated"
	KindSalesEnded       Kind = "SalesEnded"
	KindTicketPurchased  Kind = "TicketPurchased"
	KindTicketTraded     Kind = "TicketTraded"
	KindLotterySettled   Kind = "LotterySettled"
	KindPrizeClaimed     Kind = "PrizeClaimed"
	KindTicketListed     Kind = "TicketListed"
	KindTicketBought     Kind = "TicketBought"
	KindListingCancelled Kind = "ListingCancelled"
	KindWithdrawn        Kind = "Withdrawn"
)

// Event is one committed state change. Seq is assigned by the recorder and
// increases in recording order.
type Event struct {
	ID           string        `json:"id"`
	Seq          uint64        `json:"seq"`
	Kind         Kind          `json:"kind"`
	LotteryID    uint64        `json:"lotteryId,omitempty"`
	TicketID     uint64        `json:"ticketId,omitempty"`
	Number       uint64        `json:"number,omitempty"`
	Actor        string        `json:"actor,omitempty"`
	Counterparty string        `json:"counterparty,omitempty"`
	Amount       models.Amount `json:"amount,omitempty"`
	Tickets      []uint64      `json:"tickets,omitempty"`
	At           time.Time     `json:"at"`
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	LotteryID uint64
	TicketID  uint64
	Limit     int
}

func (f Filter) match(ev Event) bool {
	if f.LotteryID != 0 && ev.LotteryID != f.LotteryID {
		return false
	}
	if f.TicketID != 0 && ev.TicketID != f.TicketID {
		return false
	}
	return true
}

// Recorder persists and lists events.
type Recorder interface {
	Record(ctx context.Context, ev Event) (Event, error)
	List(ctx context.Context, filter Filter) ([]Event, error)
	Close() error
}

// prepare fills the fields every recorder assigns the same way.
func prepare(ev Event, seq uint64) Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	ev.Seq = seq
	return ev
}

// Memory is an in-process Recorder.
type Memory struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemory creates an empty in-process journal.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(ctx context.Context, ev Event) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ev = prepare(ev, uint64(len(m.events))+1)
	ev.Tickets = slices.Clone(ev.Tickets)
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *Memory) List(ctx context.Context, filter Filter) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Event{}
	for _, ev := range m.events {
		if !filter.match(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
