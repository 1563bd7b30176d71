package services

import (
	"math"
	"sync"

	apperrors "easybet/internal/errors"
	"easybet/internal/models"
)

// Ledger holds per-lottery escrow and per-address withdrawable balances.
// It is the only component that moves value. Callers holding a lottery
// aggregate lock may call into the Ledger; the Ledger never calls back.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]models.Amount
	escrow   map[uint64]models.Amount
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]models.Amount),
		escrow:   make(map[uint64]models.Amount),
	}
}

func safeAdd(balance, amount models.Amount) (models.Amount, error) {
	if amount > math.MaxInt64-balance {
		return balance, apperrors.New(apperrors.CodeInvalidArgument, "amount overflows balance")
	}
	return balance + amount, nil
}

func checkAmount(amount models.Amount) error {
	if amount < 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "negative amount %d", amount)
	}
	return nil
}

// Escrow adds a ticket payment to the prize pool held for a lottery.
func (l *Ledger) Escrow(lotteryID uint64, amount models.Amount) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := safeAdd(l.escrow[lotteryID], amount)
	if err != nil {
		return err
	}
	l.escrow[lotteryID] = next
	return nil
}

// Credit adds an incoming payment to an address's withdrawable balance.
func (l *Ledger) Credit(addr string, amount models.Amount) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := safeAdd(l.balances[addr], amount)
	if err != nil {
		return err
	}
	l.balances[addr] = next
	return nil
}

// Release moves amount out of a lottery's escrow into an address's
// withdrawable balance.
func (l *Ledger) Release(lotteryID uint64, addr string, amount models.Amount) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	held := l.escrow[lotteryID]
	if held < amount {
		return apperrors.Newf(apperrors.CodeInsufficientBalance, "lottery %d escrow holds %d, need %d", lotteryID, held, amount)
	}
	next, err := safeAdd(l.balances[addr], amount)
	if err != nil {
		return err
	}
	l.escrow[lotteryID] = held - amount
	l.balances[addr] = next
	return nil
}

// Withdraw empties an address's withdrawable balance and returns the amount
// paid out of the system.
func (l *Ledger) Withdraw(addr string) (models.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	amount := l.balances[addr]
	if amount == 0 {
		return 0, apperrors.Newf(apperrors.CodeInsufficientBalance, "%s has nothing to withdraw", addr)
	}
	delete(l.balances, addr)
	return amount, nil
}

// Balance returns the withdrawable balance of an address.
func (l *Ledger) Balance(addr string) models.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

// Escrowed returns the amount still held for a lottery.
func (l *Ledger) Escrowed(lotteryID uint64) models.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.escrow[lotteryID]
}

// Total returns all value currently held: escrow plus unwithdrawn balances.
// The sum saturates at math.MaxInt64.
func (l *Ledger) Total() models.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total models.Amount
	for _, v := range l.escrow {
		next, err := safeAdd(total, v)
		if err != nil {
			return math.MaxInt64
		}
		total = next
	}
	for _, v := range l.balances {
		next, err := safeAdd(total, v)
		if err != nil {
			return math.MaxInt64
		}
		total = next
	}
	return total
}
