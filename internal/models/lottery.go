package models

import "time"

// Amount is a quantity of the single tracked unit of value, in base units.
type Amount int64

// LotteryState is the lifecycle position of a lottery. It only moves forward.
type LotteryState uint8

const (
	// StateNotStarted is the zero value; it is only observed for unknown ids.
	StateNotStarted LotteryState = iota
	StateSelling
	StateTrading
	StateSettled
)

func (s LotteryState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateSelling:
		return "Selling"
	case StateTrading:
		return "Trading"
	case StateSettled:
		return "Settled"
	default:
		return "Unknown"
	}
}

// Lottery is a priced, capped draw with a sales window.
// WinningNumber is zero until the lottery is settled.
type Lottery struct {
	ID             uint64       `json:"lotteryId"`
	TicketPrice    Amount       `json:"ticketPrice"`
	MaxTickets     uint64       `json:"maxTickets"`
	SoldTickets    uint64       `json:"soldTickets"`
	TotalPrizePool Amount       `json:"totalPrizePool"`
	WinningNumber  uint64       `json:"winningNumber"`
	WinningTickets []uint64     `json:"winningTickets"`
	State          LotteryState `json:"state"`
	StartTime      time.Time    `json:"startTime"`
	EndTime        time.Time    `json:"endTime"`
	SettleTime     time.Time    `json:"settleTime"`
	Description    string       `json:"description"`
}

// SalesOpen reports whether a purchase at now falls inside the sales window.
// The state stays Selling after EndTime until the administrator ends sales.
func (l *Lottery) SalesOpen(now time.Time) bool {
	return l.State == StateSelling && !now.After(l.EndTime)
}

// Ticket is a numbered claim minted within a lottery. IsWinning is set at
// settlement and cleared once the prize has been claimed.
type Ticket struct {
	ID            uint64    `json:"ticketId"`
	LotteryID     uint64    `json:"lotteryId"`
	Number        uint64    `json:"number"`
	Owner         string    `json:"owner"`
	PurchasePrice Amount    `json:"purchasePrice"`
	PurchaseTime  time.Time `json:"purchaseTime"`
	IsWinning     bool      `json:"isWinning"`
}

// Listing is a revocable offer to sell an owned ticket at a fixed price.
type Listing struct {
	TicketID    uint64    `json:"ticketId"`
	Seller      string    `json:"seller"`
	Price       Amount    `json:"price"`
	ListingTime time.Time `json:"listingTime"`
	IsActive    bool      `json:"isActive"`
}
