package services

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/logger"

	apperrors "easybet/internal/errors"
	"easybet/internal/journal"
	"easybet/internal/models"
)

// lotteryAggregate is the unit of locking: a lottery together with its
// tickets and listings. Every mutation holds mu for the whole
// validate-then-apply sequence.
type lotteryAggregate struct {
	mu       sync.RWMutex
	lottery  models.Lottery
	tickets  map[uint64]*models.Ticket
	numbers  map[uint64]uint64 // number -> ticket id
	order    []uint64          // ticket ids in mint order
	listings map[uint64]*models.Listing
}

func newLotteryAggregate(l models.Lottery) *lotteryAggregate {
	return &lotteryAggregate{
		lottery:  l,
		tickets:  make(map[uint64]*models.Ticket),
		numbers:  make(map[uint64]uint64),
		listings: make(map[uint64]*models.Listing),
	}
}

// snapshot copies the lottery so it can leave the lock.
func (a *lotteryAggregate) snapshot() models.Lottery {
	l := a.lottery
	l.WinningTickets = slices.Clone(a.lottery.WinningTickets)
	if l.WinningTickets == nil {
		l.WinningTickets = []uint64{}
	}
	return l
}

// listingActive reports whether a stored listing is still live. Listings on
// a settled lottery are stale even though their flag was never cleared.
func (a *lotteryAggregate) listingActive(l *models.Listing) bool {
	return l != nil && l.IsActive && a.lottery.State != models.StateSettled
}

// advance moves the lottery from one state to the next.
func (a *lotteryAggregate) advance(from, to models.LotteryState) error {
	if a.lottery.State != from {
		return apperrors.Newf(apperrors.CodeInvalidState, "lottery %d is %s, expected %s",
			a.lottery.ID, a.lottery.State, from)
	}
	a.lottery.State = to
	return nil
}

// MaxDurationSeconds is the longest sales window a lottery may be created
// with; longer windows do not fit a time.Duration.
const MaxDurationSeconds = uint64(math.MaxInt64 / int64(time.Second))

// LotteryRegistry owns lottery records and drives the lifecycle state machine.
type LotteryRegistry struct {
	mu        sync.RWMutex
	lotteries []*lotteryAggregate // lottery id N lives at index N-1
	now       func() time.Time
}

// NewLotteryRegistry creates an empty registry using now as its clock.
func NewLotteryRegistry(now func() time.Time) *LotteryRegistry {
	if now == nil {
		now = time.Now
	}
	return &LotteryRegistry{now: now}
}

// Create opens a new lottery directly in the Selling state.
func (r *LotteryRegistry) Create(price models.Amount, maxTickets, durationSeconds uint64, description string, emit emitFunc) (models.Lottery, error) {
	if price <= 0 {
		return models.Lottery{}, apperrors.New(apperrors.CodeInvalidArgument, "ticket price must be greater than 0")
	}
	if maxTickets == 0 {
		return models.Lottery{}, apperrors.New(apperrors.CodeInvalidArgument, "max tickets must be greater than 0")
	}
	if durationSeconds == 0 {
		return models.Lottery{}, apperrors.New(apperrors.CodeInvalidArgument, "duration must be at least 1 second")
	}
	if durationSeconds > MaxDurationSeconds {
		return models.Lottery{}, apperrors.Newf(apperrors.CodeInvalidArgument, "duration must be at most %d seconds", MaxDurationSeconds)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.now()
	agg := newLotteryAggregate(models.Lottery{
		ID:             uint64(len(r.lotteries)) + 1,
		TicketPrice:    price,
		MaxTickets:     maxTickets,
		WinningTickets: []uint64{},
		State:          models.StateSelling,
		StartTime:      start,
		EndTime:        start.Add(time.Duration(durationSeconds) * time.Second),
		Description:    description,
	})
	r.lotteries = append(r.lotteries, agg)
	emit.emit(journal.Event{Kind: journal.KindLotteryCreated, LotteryID: agg.lottery.ID, Amount: price, Number: maxTickets})
	logger.Infof("lottery %d created: price=%d max=%d ends=%s", agg.lottery.ID, price, maxTickets, agg.lottery.EndTime.Format(time.RFC3339))
	return agg.snapshot(), nil
}

// EndSales closes the sales window early or on time and opens trading.
func (r *LotteryRegistry) EndSales(id uint64, emit emitFunc) (models.Lottery, error) {
	agg, err := r.lookup(id)
	if err != nil {
		return models.Lottery{}, err
	}
	agg.mu.Lock()
	defer agg.mu.Unlock()

	if err := agg.advance(models.StateSelling, models.StateTrading); err != nil {
		return models.Lottery{}, err
	}
	emit.emit(journal.Event{Kind: journal.KindSalesEnded, LotteryID: id, Number: agg.lottery.SoldTickets})
	logger.Infof("lottery %d sales ended with %d/%d tickets sold", id, agg.lottery.SoldTickets, agg.lottery.MaxTickets)
	return agg.snapshot(), nil
}

// Get returns a copy of the lottery.
func (r *LotteryRegistry) Get(id uint64) (models.Lottery, error) {
	agg, err := r.lookup(id)
	if err != nil {
		return models.Lottery{}, err
	}
	agg.mu.RLock()
	defer agg.mu.RUnlock()
	return agg.snapshot(), nil
}

// List returns copies of every lottery in id order.
func (r *LotteryRegistry) List() []models.Lottery {
	aggs := r.all()
	out := make([]models.Lottery, 0, len(aggs))
	for _, agg := range aggs {
		agg.mu.RLock()
		out = append(out, agg.snapshot())
		agg.mu.RUnlock()
	}
	return out
}

func (r *LotteryRegistry) lookup(id uint64) (*lotteryAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id == 0 || id > uint64(len(r.lotteries)) {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "lottery %d does not exist", id)
	}
	return r.lotteries[id-1], nil
}

// all returns the aggregates in id order without holding their locks.
func (r *LotteryRegistry) all() []*lotteryAggregate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.lotteries)
}
