package user

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/edumvp/backend/storage/kvstore"
)

const defaultEmoji = "📢"

// notifications are stored as one map username -> feed, newest first.
type notificationMap map[string][]Notification

func (svc *Service) loadNotifications() notificationMap {
	m := make(notificationMap)
	if err := svc.store.Load(kvstore.KeyNotifications, &m); err != nil {
		if err != kvstore.ErrKeyNotFound {
			svc.logger.Warn(fmt.Sprintf("loading notifications, falling back to empty: %v", err))
		}
		return make(notificationMap)
	}
	return m
}

func (svc *Service) saveNotifications(m notificationMap) error {
	return errors.Wrap(svc.store.Save(kvstore.KeyNotifications, m), "saving notifications")
}

// AddNotification prepends an unread entry to the user's feed.
func (svc *Service) AddNotification(username string, n NewNotification) (Notification, error) {
	key := normalizeUsername(username)
	if key == "" {
		return Notification{}, ErrNotFound
	}
	if n.Emoji == "" {
		n.Emoji = defaultEmoji
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	notif := Notification{
		ID:        "ntf-" + uuid.New().String(),
		Text:      n.Text,
		Emoji:     n.Emoji,
		Link:      n.Link,
		Unread:    true,
		Timestamp: time.Now().UTC(),
	}
	m := svc.loadNotifications()
	m[key] = append([]Notification{notif}, m[key]...)
	return notif, svc.saveNotifications(m)
}

// Notifications returns the user's feed, newest first.
func (svc *Service) Notifications(username string) []Notification {
	key := normalizeUsername(username)
	if key == "" {
		return nil
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.loadNotifications()[key]
}

func (svc *Service) UnreadCount(username string) int {
	var count int
	for _, n := range svc.Notifications(username) {
		if n.Unread {
			count++
		}
	}
	return count
}

// MarkNotificationRead marks one entry read; reports whether anything changed.
func (svc *Service) MarkNotificationRead(username, id string) (bool, error) {
	key := normalizeUsername(username)
	if key == "" {
		return false, nil
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	m := svc.loadNotifications()
	for i, n := range m[key] {
		if n.ID == id && n.Unread {
			m[key][i].Unread = false
			return true, svc.saveNotifications(m)
		}
	}
	return false, nil
}

func (svc *Service) MarkAllNotificationsRead(username string) error {
	key := normalizeUsername(username)
	if key == "" {
		return nil
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	m := svc.loadNotifications()
	for i := range m[key] {
		m[key][i].Unread = false
	}
	return svc.saveNotifications(m)
}

func (svc *Service) ClearNotifications(username string) error {
	key := normalizeUsername(username)
	if key == "" {
		return nil
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	m := svc.loadNotifications()
	delete(m, key)
	return svc.saveNotifications(m)
}
