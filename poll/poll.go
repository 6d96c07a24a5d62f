package poll

import (
	"sync"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"huddle/models"
)

// Tracker holds at most one poll per session. A new poll replaces the
// previous one wholesale, tallies included; archival of ended polls is
// somebody else's job.
type Tracker struct {
	mu      sync.RWMutex
	current *models.Poll
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// SetActive replaces any tracked poll with the new one. The server
// serializes poll creation, but an overlapping replace must not crash
// here either.
func (t *Tracker) SetActive(poll models.Poll) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil && t.current.State == models.PollActive {
		log.WithFields(log.Fields{
			"previous": t.current.ID,
			"new":      poll.ID,
		}).Warn("Replacing still-active poll")
	}

	copied := clonePoll(poll)
	copied.State = models.PollActive
	t.current = &copied
}

// VoteOption adds one vote to the named option. Stale events that
// reference a replaced or ended poll, or an option the poll does not
// have, are silently dropped.
func (t *Tracker) VoteOption(pollID string, optionText string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil || t.current.ID != pollID || t.current.State != models.PollActive {
		return
	}

	for i := range t.current.Options {
		if t.current.Options[i].Text == optionText {
			t.current.Options[i].VoteCount++
			return
		}
	}
}

// End transitions the poll to its terminal state. The final tallies
// stay readable until the next SetActive.
func (t *Tracker) End(pollID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil || t.current.ID != pollID {
		return
	}
	t.current.State = models.PollEnded
}

// Current returns a copy of the tracked poll, or nil if none exists.
func (t *Tracker) Current() *models.Poll {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.current == nil {
		return nil
	}
	copied := clonePoll(*t.current)
	return &copied
}

func clonePoll(poll models.Poll) models.Poll {
	poll.Options = lo.Map(poll.Options, func(option models.PollOption, _ int) models.PollOption {
		return option
	})
	return poll
}
