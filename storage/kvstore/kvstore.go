// Package kvstore provides the persistence primitives behind the domain
// stores: one JSON document per logical collection, addressed by key. There
// are no partial writes — every mutation reads the whole collection, applies
// a transform and writes the whole collection back. Two writers racing on the
// same key are last-writer-wins; this is an accepted limitation carried over
// from the system this layer models, not a guarantee the layer provides.
package kvstore

import "errors"

// Storage keys shared across the domain stores. Key names are part of the
// effective wire format: independent modules read and write them by literal
// string, and existing data sets use them.
const (
	KeyUsers          = "edumvp_users"
	KeyCurrentUser    = "edumvp_current_user"
	KeyStats          = "edumvp_stats"
	KeyNotifications  = "edumvp_notifications"
	KeyCoursesState   = "edumvp_courses_state_v1"
	KeyGamification   = "edumvp_gamification"
	KeyPurchases      = "edumvp_purchases"
	KeyCoinHistory    = "edumvp_coin_history"
	KeyHomeworkState  = "edumvp_homework_mock_state_v1"
	KeyHomeworkNotify = "edumvp_homework_mock_state_v1_notify"
)

var ErrKeyNotFound = errors.New("key not found")

type Store interface {
	// Load decodes the JSON document at key into dst.
	// Returns ErrKeyNotFound when the key is absent.
	Load(key string, dst interface{}) error
	// Save encodes value and replaces the whole document at key.
	Save(key string, value interface{}) error
	// Delete removes the document at key; absent keys are not an error.
	Delete(key string) error
}
