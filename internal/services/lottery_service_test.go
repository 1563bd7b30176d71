package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "easybet/internal/errors"
	"easybet/internal/journal"
	"easybet/internal/models"
)

const (
	admin = "0xadmin"
	alice = "0xalice"
	bob   = "0xbob"
	carol = "0xcarol"

	price models.Amount = 1_000_000 // 0.01 at 8 decimals
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*LotteryService, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	svc := NewLotteryService(Options{Admin: admin, Clock: clock.Now, Journal: journal.NewMemory()})
	return svc, clock
}

func requireCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperrors.GetCode(err), "unexpected error: %v", err)
}

// openLottery creates a lottery with the given cap and returns its id.
func openLottery(t *testing.T, svc *LotteryService, maxTickets uint64) uint64 {
	t.Helper()
	l, err := svc.CreateLottery(context.Background(), admin, price, maxTickets, 3600, "Test")
	require.NoError(t, err)
	return l.ID
}

// tradingLottery creates a lottery where alice holds #1 and bob holds #2 and
// sales have ended. It returns the lottery id and both ticket ids.
func tradingLottery(t *testing.T, svc *LotteryService) (uint64, uint64, uint64) {
	t.Helper()
	ctx := context.Background()
	id := openLottery(t, svc, 100)
	t1, err := svc.BuyTicket(ctx, alice, id, 1, price)
	require.NoError(t, err)
	t2, err := svc.BuyTicket(ctx, bob, id, 2, price)
	require.NoError(t, err)
	_, err = svc.EndSales(ctx, admin, id)
	require.NoError(t, err)
	return id, t1.ID, t2.ID
}

func TestLotteryService_CreateLottery(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	t.Run("administrator creates a selling lottery", func(t *testing.T) {
		l, err := svc.CreateLottery(ctx, admin, price, 100, 3600, "Test")
		require.NoError(t, err)
		require.Equal(t, uint64(1), l.ID)
		require.Equal(t, price, l.TicketPrice)
		require.Equal(t, uint64(100), l.MaxTickets)
		require.Equal(t, models.StateSelling, l.State)
		require.Equal(t, "Test", l.Description)
		require.Equal(t, clock.Now(), l.StartTime)
		require.Equal(t, clock.Now().Add(time.Hour), l.EndTime)
		require.Empty(t, l.WinningTickets)
	})

	t.Run("ids are monotonic", func(t *testing.T) {
		l, err := svc.CreateLottery(ctx, admin, price, 10, 60, "second")
		require.NoError(t, err)
		require.Equal(t, uint64(2), l.ID)
	})

	t.Run("administrator address is case-insensitive", func(t *testing.T) {
		_, err := svc.CreateLottery(ctx, "0xADMIN", price, 10, 60, "upper")
		require.NoError(t, err)
	})

	t.Run("non-administrator is rejected", func(t *testing.T) {
		_, err := svc.CreateLottery(ctx, alice, price, 100, 3600, "Test")
		requireCode(t, err, apperrors.CodeUnauthorized)
		_, err = svc.CreateLottery(ctx, "", price, 100, 3600, "Test")
		requireCode(t, err, apperrors.CodeUnauthorized)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		_, err := svc.CreateLottery(ctx, admin, 0, 100, 3600, "free")
		requireCode(t, err, apperrors.CodeInvalidArgument)
		_, err = svc.CreateLottery(ctx, admin, price, 0, 3600, "empty")
		requireCode(t, err, apperrors.CodeInvalidArgument)
		_, err = svc.CreateLottery(ctx, admin, price, 100, 0, "instant")
		requireCode(t, err, apperrors.CodeInvalidArgument)
	})

	t.Run("unknown lottery", func(t *testing.T) {
		_, err := svc.GetLottery(99)
		requireCode(t, err, apperrors.CodeNotFound)
		_, err = svc.GetLottery(0)
		requireCode(t, err, apperrors.CodeNotFound)
	})

	require.Len(t, svc.GetLotteries(), 3)
}

func TestLotteryService_BuyTicket(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := openLottery(t, svc, 100)

	t.Run("successful purchase", func(t *testing.T) {
		ticket, err := svc.BuyTicket(ctx, alice, id, 1, price)
		require.NoError(t, err)
		require.Equal(t, uint64(1), ticket.ID)
		require.Equal(t, uint64(1), ticket.Number)
		require.Equal(t, alice, ticket.Owner)
		require.Equal(t, id, ticket.LotteryID)
		require.Equal(t, price, ticket.PurchasePrice)
		require.False(t, ticket.IsWinning)
	})

	t.Run("number out of range", func(t *testing.T) {
		_, err := svc.BuyTicket(ctx, alice, id, 0, price)
		requireCode(t, err, apperrors.CodeInvalidNumber)
		_, err = svc.BuyTicket(ctx, alice, id, 101, price)
		requireCode(t, err, apperrors.CodeInvalidNumber)
	})

	t.Run("payment must match the price exactly", func(t *testing.T) {
		_, err := svc.BuyTicket(ctx, bob, id, 2, price*2)
		requireCode(t, err, apperrors.CodeIncorrectPayment)
		_, err = svc.BuyTicket(ctx, bob, id, 2, price-1)
		requireCode(t, err, apperrors.CodeIncorrectPayment)
	})

	t.Run("number already taken", func(t *testing.T) {
		_, err := svc.BuyTicket(ctx, bob, id, 1, price)
		requireCode(t, err, apperrors.CodeNumberTaken)
	})

	t.Run("unknown lottery", func(t *testing.T) {
		_, err := svc.BuyTicket(ctx, bob, 42, 1, price)
		requireCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("anonymous caller", func(t *testing.T) {
		_, err := svc.BuyTicket(ctx, "  ", id, 3, price)
		requireCode(t, err, apperrors.CodeUnauthorized)
	})

	t.Run("rejections leave no trace", func(t *testing.T) {
		l, err := svc.GetLottery(id)
		require.NoError(t, err)
		require.Equal(t, uint64(1), l.SoldTickets)
		require.Equal(t, price, l.TotalPrizePool)
		require.Equal(t, price, svc.Escrowed(id))
		require.Equal(t, price, svc.GetBalance())
	})

	t.Run("purchases after endSales are rejected", func(t *testing.T) {
		_, err := svc.EndSales(ctx, admin, id)
		require.NoError(t, err)
		_, err = svc.BuyTicket(ctx, bob, id, 2, price)
		requireCode(t, err, apperrors.CodeInvalidState)
	})

	t.Run("purchases after settlement are rejected", func(t *testing.T) {
		_, err := svc.SettleLottery(ctx, admin, id, 1)
		require.NoError(t, err)
		_, err = svc.BuyTicket(ctx, bob, id, 2, price)
		requireCode(t, err, apperrors.CodeInvalidState)
	})
}

func TestLotteryService_LongSalesWindow(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	l, err := svc.CreateLottery(ctx, admin, price, 10, MaxDurationSeconds, "long")
	require.NoError(t, err)
	require.True(t, l.EndTime.After(l.StartTime))
	require.Equal(t, clock.Now().Add(time.Duration(MaxDurationSeconds)*time.Second), l.EndTime)

	_, err = svc.BuyTicket(ctx, alice, l.ID, 1, price)
	require.NoError(t, err)

	_, err = svc.CreateLottery(ctx, admin, price, 10, MaxDurationSeconds+1, "too long")
	requireCode(t, err, apperrors.CodeInvalidArgument)
	_, err = svc.CreateLottery(ctx, admin, price, 10, 10_000_000_000, "too long")
	requireCode(t, err, apperrors.CodeInvalidArgument)
	require.Len(t, svc.GetLotteries(), 1)
}

func TestLotteryService_SalesWindowExpiry(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	l, err := svc.CreateLottery(ctx, admin, price, 100, 1, "Test")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = svc.BuyTicket(ctx, alice, l.ID, 1, price)
	require.NoError(t, err, "the end time itself is still inside the window")

	clock.Advance(time.Second)
	_, err = svc.BuyTicket(ctx, alice, l.ID, 2, price)
	requireCode(t, err, apperrors.CodeSalesEnded)

	got, err := svc.GetLottery(l.ID)
	require.NoError(t, err)
	require.Equal(t, models.StateSelling, got.State, "expiry must not move the state on its own")

	_, err = svc.EndSales(ctx, admin, l.ID)
	require.NoError(t, err)
}

func TestLotteryService_EndSales(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := openLottery(t, svc, 10)

	_, err := svc.EndSales(ctx, alice, id)
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = svc.EndSales(ctx, admin, 77)
	requireCode(t, err, apperrors.CodeNotFound)

	l, err := svc.EndSales(ctx, admin, id)
	require.NoError(t, err, "ending sales early with no tickets sold is allowed")
	require.Equal(t, models.StateTrading, l.State)

	_, err = svc.EndSales(ctx, admin, id)
	requireCode(t, err, apperrors.CodeInvalidState)
}

func TestLotteryService_TradeTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("requires trading state", func(t *testing.T) {
		svc, _ := newTestService(t)
		id := openLottery(t, svc, 1)
		ticket, err := svc.BuyTicket(ctx, alice, id, 1, price)
		require.NoError(t, err)
		_, err = svc.TradeTicket(ctx, alice, ticket.ID, bob, price*2, price*2)
		requireCode(t, err, apperrors.CodeInvalidState)
	})

	svc, _ := newTestService(t)
	_, aliceTicket, _ := tradingLottery(t, svc)

	t.Run("only the owner can trade", func(t *testing.T) {
		_, err := svc.TradeTicket(ctx, carol, aliceTicket, bob, price*2, price*2)
		requireCode(t, err, apperrors.CodeNotOwner)
	})

	t.Run("payment must equal the price", func(t *testing.T) {
		_, err := svc.TradeTicket(ctx, alice, aliceTicket, bob, price*2, price)
		requireCode(t, err, apperrors.CodeIncorrectPayment)
	})

	t.Run("recipient is required", func(t *testing.T) {
		_, err := svc.TradeTicket(ctx, alice, aliceTicket, "", price, price)
		requireCode(t, err, apperrors.CodeInvalidArgument)
	})

	t.Run("unknown ticket", func(t *testing.T) {
		_, err := svc.TradeTicket(ctx, alice, 404, bob, price, price)
		requireCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("ownership moves and the seller is credited", func(t *testing.T) {
		ticket, err := svc.TradeTicket(ctx, alice, aliceTicket, carol, price*2, price*2)
		require.NoError(t, err)
		require.Equal(t, carol, ticket.Owner)
		require.Equal(t, price, ticket.PurchasePrice, "purchase price is immutable")
		require.Equal(t, price*2, svc.BalanceOf(alice))
		require.Empty(t, svc.GetUserTickets(alice))
		require.Equal(t, []uint64{aliceTicket}, svc.GetUserTickets(carol))
	})
}

func TestLotteryService_Marketplace(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	lotteryID, aliceTicket, bobTicket := tradingLottery(t, svc)

	t.Run("listing requires trading state", func(t *testing.T) {
		other := openLottery(t, svc, 5)
		ticket, err := svc.BuyTicket(ctx, alice, other, 3, price)
		require.NoError(t, err)
		_, err = svc.ListTicket(ctx, alice, ticket.ID, price)
		requireCode(t, err, apperrors.CodeInvalidState)
	})

	t.Run("listing validations", func(t *testing.T) {
		_, err := svc.ListTicket(ctx, bob, aliceTicket, price)
		requireCode(t, err, apperrors.CodeNotOwner)
		_, err = svc.ListTicket(ctx, alice, aliceTicket, 0)
		requireCode(t, err, apperrors.CodeInvalidArgument)
		_, err = svc.ListTicket(ctx, alice, 999, price)
		requireCode(t, err, apperrors.CodeNotFound)
		_, err = svc.GetListing(aliceTicket)
		requireCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("list then buy", func(t *testing.T) {
		listing, err := svc.ListTicket(ctx, alice, aliceTicket, price*3)
		require.NoError(t, err)
		require.True(t, listing.IsActive)
		require.Equal(t, alice, listing.Seller)

		_, err = svc.ListTicket(ctx, alice, aliceTicket, price*4)
		requireCode(t, err, apperrors.CodeAlreadyListed)

		require.Equal(t, []uint64{aliceTicket}, svc.GetActiveListings())

		_, err = svc.BuyListedTicket(ctx, bob, aliceTicket, price)
		requireCode(t, err, apperrors.CodeIncorrectPayment)
		_, err = svc.BuyListedTicket(ctx, alice, aliceTicket, price*3)
		requireCode(t, err, apperrors.CodeSelfTrade)

		ticket, err := svc.BuyListedTicket(ctx, bob, aliceTicket, price*3)
		require.NoError(t, err)
		require.Equal(t, bob, ticket.Owner)
		require.Equal(t, price*3, svc.BalanceOf(alice))
		require.Empty(t, svc.GetActiveListings())

		got, err := svc.GetListing(aliceTicket)
		require.NoError(t, err)
		require.False(t, got.IsActive)

		_, err = svc.BuyListedTicket(ctx, carol, aliceTicket, price*3)
		requireCode(t, err, apperrors.CodeNotListed)
	})

	t.Run("new owner can relist", func(t *testing.T) {
		_, err := svc.ListTicket(ctx, bob, aliceTicket, price)
		require.NoError(t, err)
	})

	t.Run("cancel", func(t *testing.T) {
		err := svc.CancelListing(ctx, alice, aliceTicket)
		requireCode(t, err, apperrors.CodeNotSeller)

		require.NoError(t, svc.CancelListing(ctx, bob, aliceTicket))
		err = svc.CancelListing(ctx, bob, aliceTicket)
		requireCode(t, err, apperrors.CodeNotListed)

		err = svc.CancelListing(ctx, bob, bobTicket)
		requireCode(t, err, apperrors.CodeNotListed)
		require.Empty(t, svc.GetActiveListings())
	})

	t.Run("listings on settled lotteries are stale", func(t *testing.T) {
		_, err := svc.ListTicket(ctx, bob, bobTicket, price)
		require.NoError(t, err)
		require.Equal(t, []uint64{bobTicket}, svc.GetActiveListings())

		_, err = svc.SettleLottery(ctx, admin, lotteryID, 50)
		require.NoError(t, err)

		require.Empty(t, svc.GetActiveListings())
		got, err := svc.GetListing(bobTicket)
		require.NoError(t, err)
		require.False(t, got.IsActive)
		_, err = svc.BuyListedTicket(ctx, carol, bobTicket, price)
		requireCode(t, err, apperrors.CodeNotListed)
		err = svc.CancelListing(ctx, bob, bobTicket)
		requireCode(t, err, apperrors.CodeNotListed)
	})
}

func TestLotteryService_StaleListingAfterDirectTrade(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, aliceTicket, _ := tradingLottery(t, svc)

	_, err := svc.ListTicket(ctx, alice, aliceTicket, price*5)
	require.NoError(t, err)

	_, err = svc.TradeTicket(ctx, alice, aliceTicket, carol, price, price)
	require.NoError(t, err)

	require.Empty(t, svc.GetActiveListings())
	_, err = svc.BuyListedTicket(ctx, bob, aliceTicket, price*5)
	requireCode(t, err, apperrors.CodeNotListed)

	t.Run("trading back does not revive the old listing", func(t *testing.T) {
		_, err := svc.TradeTicket(ctx, carol, aliceTicket, alice, 0, 0)
		require.NoError(t, err)
		_, err = svc.BuyListedTicket(ctx, bob, aliceTicket, price*5)
		requireCode(t, err, apperrors.CodeNotListed)
	})
}

func TestLotteryService_Settlement(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := openLottery(t, svc, 100)

	winner, err := svc.BuyTicket(ctx, alice, id, 1, price)
	require.NoError(t, err)
	loser, err := svc.BuyTicket(ctx, bob, id, 2, price)
	require.NoError(t, err)

	t.Run("settle requires trading", func(t *testing.T) {
		_, err := svc.SettleLottery(ctx, admin, id, 1)
		requireCode(t, err, apperrors.CodeInvalidState)
		_, err = svc.ClaimPrize(ctx, alice, winner.ID)
		requireCode(t, err, apperrors.CodeNotSettled)
	})

	_, err = svc.EndSales(ctx, admin, id)
	require.NoError(t, err)

	t.Run("settle validations", func(t *testing.T) {
		_, err := svc.SettleLottery(ctx, alice, id, 1)
		requireCode(t, err, apperrors.CodeUnauthorized)
		_, err = svc.SettleLottery(ctx, admin, id, 0)
		requireCode(t, err, apperrors.CodeInvalidNumber)
		_, err = svc.SettleLottery(ctx, admin, id, 101)
		requireCode(t, err, apperrors.CodeInvalidNumber)
		_, err = svc.SettleLottery(ctx, admin, 9, 1)
		requireCode(t, err, apperrors.CodeNotFound)
	})

	l, err := svc.SettleLottery(ctx, admin, id, 1)
	require.NoError(t, err)
	require.Equal(t, models.StateSettled, l.State)
	require.Equal(t, uint64(1), l.WinningNumber)
	require.False(t, l.SettleTime.IsZero())

	winners, err := svc.GetWinningTickets(id)
	require.NoError(t, err)
	require.Equal(t, []uint64{winner.ID}, winners)

	t.Run("settled lotteries reject trading", func(t *testing.T) {
		_, err := svc.TradeTicket(ctx, alice, winner.ID, carol, price, price)
		requireCode(t, err, apperrors.CodeInvalidState)
		_, err = svc.SettleLottery(ctx, admin, id, 2)
		requireCode(t, err, apperrors.CodeInvalidState)
	})

	t.Run("claim validations", func(t *testing.T) {
		_, err := svc.ClaimPrize(ctx, bob, winner.ID)
		requireCode(t, err, apperrors.CodeNotOwner)
		_, err = svc.ClaimPrize(ctx, bob, loser.ID)
		requireCode(t, err, apperrors.CodeNotWinning)
	})

	t.Run("claim succeeds exactly once", func(t *testing.T) {
		share, err := svc.ClaimPrize(ctx, alice, winner.ID)
		require.NoError(t, err)
		require.Equal(t, 2*price, share)
		require.Equal(t, 2*price, svc.BalanceOf(alice))
		require.Equal(t, models.Amount(0), svc.Escrowed(id))

		_, err = svc.ClaimPrize(ctx, alice, winner.ID)
		requireCode(t, err, apperrors.CodeNotWinning)
		require.Equal(t, 2*price, svc.BalanceOf(alice))

		ticket, err := svc.GetTicket(winner.ID)
		require.NoError(t, err)
		require.False(t, ticket.IsWinning)
	})

	t.Run("withdraw", func(t *testing.T) {
		amount, err := svc.Withdraw(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, 2*price, amount)
		require.Equal(t, models.Amount(0), svc.GetBalance())

		_, err = svc.Withdraw(ctx, alice)
		requireCode(t, err, apperrors.CodeInsufficientBalance)
	})
}

func TestLotteryService_SettleWithoutWinners(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id, aliceTicket, _ := tradingLottery(t, svc)

	l, err := svc.SettleLottery(ctx, admin, id, 77)
	require.NoError(t, err)
	require.Empty(t, l.WinningTickets)

	_, err = svc.ClaimPrize(ctx, alice, aliceTicket)
	requireCode(t, err, apperrors.CodeNotWinning)
	require.Equal(t, 2*price, svc.Escrowed(id), "an unwon pool stays in escrow")
}

func TestShare(t *testing.T) {
	require.Equal(t, models.Amount(3), Share(10, 3))
	require.Equal(t, models.Amount(10), Share(10, 1))
	require.Equal(t, models.Amount(0), Share(10, 0))
}

func TestLotteryService_Invariants(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := openLottery(t, svc, 20)

	buyers := []string{alice, bob, carol}
	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Three buyers race for every number; exactly one wins each.
			_, _ = svc.BuyTicket(ctx, buyers[i%3], id, uint64(i/3)+1, price)
		}(i)
	}
	wg.Wait()

	l, err := svc.GetLottery(id)
	require.NoError(t, err)
	require.Equal(t, uint64(20), l.SoldTickets)

	ids, err := svc.GetLotteryTickets(id)
	require.NoError(t, err)
	require.Len(t, ids, int(l.SoldTickets))

	seen := make(map[uint64]bool)
	var pool models.Amount
	for _, tid := range ids {
		ticket, err := svc.GetTicket(tid)
		require.NoError(t, err)
		require.False(t, seen[ticket.Number], "number %d minted twice", ticket.Number)
		seen[ticket.Number] = true
		pool += ticket.PurchasePrice
	}
	require.Equal(t, l.TotalPrizePool, pool)
	require.Equal(t, pool, svc.Escrowed(id))

	_, err = svc.BuyTicket(ctx, alice, id, 5, price)
	requireCode(t, err, apperrors.CodeNumberTaken)

	owned := len(svc.GetUserTickets(alice)) + len(svc.GetUserTickets(bob)) + len(svc.GetUserTickets(carol))
	require.Equal(t, 20, owned)
}

func TestLotteryService_Sweep(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	expired, err := svc.CreateLottery(ctx, admin, price, 10, 1, "short")
	require.NoError(t, err)
	openLottery(t, svc, 10)
	settledID, _, bobTicket := tradingLottery(t, svc)
	_, err = svc.ListTicket(ctx, bob, bobTicket, price)
	require.NoError(t, err)
	_, err = svc.SettleLottery(ctx, admin, settledID, 1)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	report := svc.Sweep(ctx)
	require.Equal(t, []uint64{expired.ID}, report.ExpiredSales)
	require.Equal(t, 1, report.PrunedListings)

	_, err = svc.BuyTicket(ctx, alice, expired.ID, 1, price)
	requireCode(t, err, apperrors.CodeSalesEnded)
	got, err := svc.GetLottery(expired.ID)
	require.NoError(t, err)
	require.Equal(t, models.StateSelling, got.State)

	require.Equal(t, 0, svc.Sweep(ctx).PrunedListings)
}

func TestLotteryService_Journal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id, aliceTicket, _ := tradingLottery(t, svc)

	_, err := svc.ListTicket(ctx, alice, aliceTicket, price)
	require.NoError(t, err)
	_, err = svc.BuyListedTicket(ctx, carol, aliceTicket, price)
	require.NoError(t, err)
	_, err = svc.SettleLottery(ctx, admin, id, 1)
	require.NoError(t, err)
	_, err = svc.ClaimPrize(ctx, carol, aliceTicket)
	require.NoError(t, err)

	// Rejected calls are not journaled.
	_, err = svc.ClaimPrize(ctx, carol, aliceTicket)
	require.Error(t, err)

	events, err := svc.Events(ctx, journal.Filter{LotteryID: id})
	require.NoError(t, err)
	kinds := make([]journal.Kind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	require.Equal(t, []journal.Kind{
		journal.KindLotteryCreated,
		journal.KindTicketPurchased,
		journal.KindTicketPurchased,
		journal.KindSalesEnded,
		journal.KindTicketListed,
		journal.KindTicketBought,
		journal.KindLotterySettled,
		journal.KindPrizeClaimed,
	}, kinds)

	bought := events[5]
	require.Equal(t, carol, bought.Actor)
	require.Equal(t, alice, bought.Counterparty)
	require.Equal(t, price, bought.Amount)
}

func TestLotteryService_JournalFollowsCommitOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := openLottery(t, svc, 200)
	other := openLottery(t, svc, 200)

	var wg sync.WaitGroup
	for i := 1; i <= 200; i++ {
		wg.Add(1)
		go func(number uint64) {
			defer wg.Done()
			lottery := id
			if number%2 == 0 {
				lottery = other
			}
			if _, err := svc.BuyTicket(ctx, alice, lottery, number, price); err != nil {
				t.Errorf("buy %d in lottery %d: %v", number, lottery, err)
			}
		}(uint64(i))
	}
	wg.Wait()

	for _, lotteryID := range []uint64{id, other} {
		events, err := svc.Events(ctx, journal.Filter{LotteryID: lotteryID})
		require.NoError(t, err)
		minted, err := svc.GetLotteryTickets(lotteryID)
		require.NoError(t, err)

		journaled := []uint64{}
		for _, ev := range events {
			if ev.Kind == journal.KindTicketPurchased {
				journaled = append(journaled, ev.TicketID)
			}
		}
		require.Equal(t, minted, journaled, "lottery %d", lotteryID)
	}
}
