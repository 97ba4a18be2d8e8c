package gamification

import (
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/core/user"
	"github.com/edumvp/backend/storage/kvstore"
)

type directoryStub map[string]user.User

func (d directoryStub) GetUser(username string) (user.User, error) {
	usr, ok := d[username]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func setup(t *testing.T) *Service {
	t.Helper()
	logger := core.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	return NewService(kvstore.NewMemStore(), directoryStub{}, logger)
}

func TestService_AddCoins(t *testing.T) {
	svc := setup(t)

	balance, err := svc.AddCoins("anna@example.com", 30, "daily_plan_completed")
	assert.NoError(t, err)
	assert.Equal(t, 30, balance)

	balance, err = svc.AddCoins("anna@example.com", 20, "daily_plan_completed")
	assert.NoError(t, err)
	assert.Equal(t, 50, balance)

	// non-positive amounts and missing usernames are no-ops
	balance, err = svc.AddCoins("anna@example.com", 0, "noop")
	assert.NoError(t, err)
	assert.Equal(t, 50, balance)
	balance, err = svc.AddCoins("anna@example.com", -5, "noop")
	assert.NoError(t, err)
	assert.Equal(t, 50, balance)
	_, err = svc.AddCoins("", 10, "noop")
	assert.NoError(t, err)

	// history is newest first, balance is post-transaction
	history := svc.History("anna@example.com", 0)
	if assert.Len(t, history, 2) {
		assert.Equal(t, 20, history[0].Amount)
		assert.Equal(t, 50, history[0].Balance)
		assert.Equal(t, 30, history[1].Amount)
		assert.Equal(t, 30, history[1].Balance)
	}
}

func TestService_SpendCoins(t *testing.T) {
	svc := setup(t)
	if _, err := svc.AddCoins("anna@example.com", 40, "seed"); err != nil {
		t.Fatalf("AddCoins() failed: %v", err)
	}

	ok, err := svc.SpendCoins("anna@example.com", 50, "too much")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 40, svc.Coins("anna@example.com"))

	ok, err = svc.SpendCoins("anna@example.com", 15, "ok")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 25, svc.Coins("anna@example.com"))

	history := svc.History("anna@example.com", 1)
	if assert.Len(t, history, 1) {
		assert.Equal(t, -15, history[0].Amount)
		assert.Equal(t, 25, history[0].Balance)
	}
}

func TestService_PurchaseFeature(t *testing.T) {
	svc := setup(t)

	// not enough coins
	result, err := svc.PurchaseFeature("anna@example.com", FeatureMusicUnlock, Prices[FeatureMusicUnlock])
	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonInsufficientFunds, result.Error)

	if _, err = svc.AddCoins("anna@example.com", 100, "seed"); err != nil {
		t.Fatalf("AddCoins() failed: %v", err)
	}

	result, err = svc.PurchaseFeature("anna@example.com", FeatureMusicUnlock, Prices[FeatureMusicUnlock])
	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 100-Prices[FeatureMusicUnlock], result.Remaining)
	assert.True(t, svc.HasPurchased("anna@example.com", FeatureMusicUnlock))

	// buying twice fails without touching the balance
	result, err = svc.PurchaseFeature("anna@example.com", FeatureMusicUnlock, Prices[FeatureMusicUnlock])
	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonAlreadyPurchased, result.Error)
	assert.Equal(t, 100-Prices[FeatureMusicUnlock], svc.Coins("anna@example.com"))
	assert.Len(t, svc.Purchases("anna@example.com"), 1)
}

func TestService_CheckAndUpdateStreak(t *testing.T) {
	svc := setup(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }

	// first check-in starts the streak
	res, err := svc.CheckAndUpdateStreak("anna@example.com")
	assert.NoError(t, err)
	assert.Equal(t, StreakResult{Streak: 1}, res)

	// same day is a no-op
	res, err = svc.CheckAndUpdateStreak("anna@example.com")
	assert.NoError(t, err)
	assert.Equal(t, StreakResult{Streak: 1}, res)

	// four consecutive days; the 5th grants the bonus exactly once
	for day := 2; day <= 5; day++ {
		now = now.Add(24 * time.Hour)
		res, err = svc.CheckAndUpdateStreak("anna@example.com")
		assert.NoError(t, err)
		assert.Equal(t, day, res.Streak)
		if day == 5 {
			assert.Equal(t, RewardStreak5, res.Bonus)
		} else {
			assert.Zero(t, res.Bonus)
		}
	}
	assert.Equal(t, RewardStreak5, svc.Coins("anna@example.com"))

	data := svc.Data("anna@example.com")
	assert.Equal(t, 5, data.CurrentStreak)
	assert.Equal(t, 5, data.LongestStreak)

	// a gap resets to 1, longest streak survives
	now = now.Add(72 * time.Hour)
	res, err = svc.CheckAndUpdateStreak("anna@example.com")
	assert.NoError(t, err)
	assert.Equal(t, StreakResult{Streak: 1}, res)
	assert.Equal(t, 5, svc.Data("anna@example.com").LongestStreak)
}

func TestService_History_capAndLimit(t *testing.T) {
	svc := setup(t)
	for i := 1; i <= historyCap+20; i++ {
		if _, err := svc.AddCoins("anna@example.com", i, fmt.Sprintf("credit %d", i)); err != nil {
			t.Fatalf("AddCoins() failed: %v", err)
		}
	}

	all := svc.History("anna@example.com", 0)
	assert.Len(t, all, historyCap)
	// newest first
	assert.Equal(t, historyCap+20, all[0].Amount)

	assert.Len(t, svc.History("anna@example.com", 20), 20)
}

func TestService_Leaderboard(t *testing.T) {
	logger := core.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	users := directoryStub{
		"anna@example.com": {Username: "anna@example.com", FirstName: "Анна", LastName: "Иванова"},
	}
	svc := NewService(kvstore.NewMemStore(), users, logger)

	now := time.Now()
	svc.now = func() time.Time { return now }

	if _, err := svc.AddCoins("anna@example.com", 50, "recent"); err != nil {
		t.Fatalf("AddCoins() failed: %v", err)
	}
	if _, err := svc.AddCoins("boris@example.com", 80, "recent"); err != nil {
		t.Fatalf("AddCoins() failed: %v", err)
	}
	// spends never count towards the board
	if _, err := svc.SpendCoins("boris@example.com", 70, "spent"); err != nil {
		t.Fatalf("SpendCoins() failed: %v", err)
	}

	// credits older than the window are ignored
	svc.now = func() time.Time { return now.Add(-40 * 24 * time.Hour) }
	if _, err := svc.AddCoins("anna@example.com", 1000, "ancient"); err != nil {
		t.Fatalf("AddCoins() failed: %v", err)
	}
	svc.now = func() time.Time { return now }

	board := svc.Leaderboard()
	if assert.Len(t, board, 2) {
		assert.Equal(t, "boris@example.com", board[0].Username)
		assert.Equal(t, 80, board[0].Coins)
		assert.Equal(t, "boris@example.com", board[0].DisplayName) // no account record
		assert.Equal(t, "anna@example.com", board[1].Username)
		assert.Equal(t, 50, board[1].Coins)
		assert.Equal(t, "Иванова Анна", board[1].DisplayName)
	}
}

func TestService_Resets(t *testing.T) {
	svc := setup(t)
	if _, err := svc.AddCoins("anna@example.com", 500, "seed"); err != nil {
		t.Fatalf("AddCoins() failed: %v", err)
	}
	if _, err := svc.PurchaseFeature("anna@example.com", FeatureThemePink, Prices[FeatureThemePink]); err != nil {
		t.Fatalf("PurchaseFeature() failed: %v", err)
	}

	assert.NoError(t, svc.ResetPurchases("anna@example.com"))
	assert.False(t, svc.HasPurchased("anna@example.com", FeatureThemePink))

	assert.NoError(t, svc.ResetCoins("anna@example.com"))
	assert.Zero(t, svc.Coins("anna@example.com"))
}
