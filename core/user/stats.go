package user

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/storage/kvstore"
)

// anonKey buckets trainer attempts made before logging in.
const anonKey = "guest-anon"

func statsKey(username string) string {
	if key := core.CleanString(username); key != "" {
		return key
	}
	return anonKey
}

// AddAnswerResult records one trainer attempt in the per-user stats and
// returns the updated summary.
func (svc *Service) AddAnswerResult(username, subjectCode string, correct bool) (Stats, error) {
	key := statsKey(username)

	svc.mu.Lock()
	defer svc.mu.Unlock()

	all := svc.loadStats()
	summary := all[key]
	if summary.Subjects == nil {
		summary.Subjects = make(map[string]SubjectStats)
	}
	summary.Total++
	perSubject := summary.Subjects[subjectCode]
	perSubject.Total++
	if correct {
		summary.Correct++
		perSubject.Correct++
	}
	summary.Subjects[subjectCode] = perSubject
	all[key] = summary

	return summary, errors.Wrap(svc.store.Save(kvstore.KeyStats, all), "saving stats")
}

// Stats returns the per-user trainer summary; unknown users get zeroes.
func (svc *Service) Stats(username string) Stats {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	summary := svc.loadStats()[statsKey(username)]
	if summary.Subjects == nil {
		summary.Subjects = make(map[string]SubjectStats)
	}
	return summary
}

func (svc *Service) loadStats() map[string]Stats {
	all := make(map[string]Stats)
	if err := svc.store.Load(kvstore.KeyStats, &all); err != nil {
		if err != kvstore.ErrKeyNotFound {
			svc.logger.Warn(fmt.Sprintf("loading stats, falling back to empty: %v", err))
		}
		return make(map[string]Stats)
	}
	return all
}
