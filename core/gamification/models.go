package gamification

import "time"

// Purchasable features and their prices.
const (
	FeaturePomodoro    = "pomodoro_timer"
	FeatureMusicUnlock = "music_unlock"
	FeatureMusicLofi1  = "track_lofi_1"
	FeatureMusicLofi2  = "track_lofi_2"
	FeatureMusicLofi3  = "track_lofi_3"
	FeatureMusicLofi4  = "track_lofi_4"
	FeatureThemeDark   = "theme_dark"
	FeatureThemePink   = "theme_pink"
)

// Prices maps a feature to its coin price.
var Prices = map[string]int{
	FeaturePomodoro:    100,
	FeatureMusicUnlock: 30,
	FeatureMusicLofi1:  70,
	FeatureMusicLofi2:  50,
	FeatureMusicLofi3:  100,
	FeatureMusicLofi4:  30,
	FeatureThemeDark:   500,
	FeatureThemePink:   300,
}

// Coin rewards for activity.
const (
	RewardDailyPlan      = 10 // full daily-plan progress
	RewardStreak5        = 50 // every 5th consecutive day
	RewardTrainer10Tasks = 1  // every 10 trainer tasks
)

// historyCap bounds the per-user transaction history, newest first.
const historyCap = 100

// Data is one user's gamification record.
type Data struct {
	Coins            int    `json:"coins"`
	LastActivityDate string `json:"last_activity_date,omitempty"` // local calendar day
	CurrentStreak    int    `json:"current_streak"`
	LongestStreak    int    `json:"longest_streak"`
}

type Purchase struct {
	Feature   string    `json:"feature"`
	Price     int       `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Transaction is one history entry; Balance is the post-transaction balance.
type Transaction struct {
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
	Balance   int       `json:"balance"`
}

// PurchaseResult reports a purchase attempt. Failures are expected business
// outcomes, not errors; Error carries the user-facing reason.
type PurchaseResult struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
}

// User-facing purchase failure reasons.
const (
	ReasonAlreadyPurchased  = "Уже куплено"
	ReasonInsufficientFunds = "Недостаточно монет"
)

// StreakResult reports a daily check-in: the current streak and the bonus
// granted by it, if any.
type StreakResult struct {
	Streak int `json:"streak"`
	Bonus  int `json:"bonus"`
}

// LeaderboardEntry aggregates a user's positive transactions over the
// leaderboard window, with display fields joined from the account record.
type LeaderboardEntry struct {
	Username    string `json:"username"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	Coins       int    `json:"coins"`
}
