package session

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"huddle/actions"
	"huddle/channel"
	"huddle/feed"
	"huddle/identity"
	"huddle/models"
	"huddle/poll"
)

// Config holds everything needed to join one live session.
type Config struct {
	// Hosts is the list of channel endpoints to try in order.
	Hosts []string

	// SessionID scopes all channel traffic.
	SessionID string

	// AuthIdentity is the authenticated identity, if any. When empty a
	// persisted anonymous identity is used instead.
	AuthIdentity string

	// IdentityDir overrides where the anonymous identity is persisted.
	// Empty means the user config dir.
	IdentityDir string

	UserAgent string
	Compress  bool

	// Observer, when set, receives every decoded inbound event after
	// the session's own stores have consumed it. It is wired before the
	// channel connects, so unlike Subscribe it also sees the initial
	// snapshot.
	Observer func(eventType channel.EventType, event any)
}

// Session owns one live conversation: a channel, a ranked feed store
// and a poll tracker, wired together for the lifetime of one view.
// Navigating away and back means Close and a fresh Join; instances are
// never reused.
type Session struct {
	id        string
	identity  string
	channel   *channel.Channel
	feed      *feed.Store
	poll      *poll.Tracker
	submitter *actions.Submitter
	closeOnce sync.Once
}

// Join resolves the identity, connects the channel and wires the
// inbound fan-out. On connect failure the returned error is the whole
// story; no session exists and nothing needs closing.
func Join(ctx context.Context, config Config) (*Session, error) {
	if config.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	resolved, err := identity.NewResolver(config.AuthIdentity, config.IdentityDir).Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	ch, err := channel.New(channel.Config{
		Hosts:     config.Hosts,
		SessionID: config.SessionID,
		Identity:  resolved,
		UserAgent: config.UserAgent,
		Compress:  config.Compress,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:       config.SessionID,
		identity: resolved,
		channel:  ch,
		feed:     feed.NewStore(),
		poll:     poll.NewTracker(),
	}
	s.submitter = actions.NewSubmitter(ch, s.feed, resolved)

	// Fan out inbound events by type. Handlers never return errors;
	// unknown ids and stale poll references are dropped inside the
	// store and tracker.
	ch.Subscribe(channel.EventSnapshot, s.onSnapshot)
	ch.Subscribe(channel.EventItemCreated, s.onItemCreated)
	ch.Subscribe(channel.EventItemPatched, s.onItemPatched)
	ch.Subscribe(channel.EventItemVoted, s.onItemVoted)
	ch.Subscribe(channel.EventPollCreated, s.onPollCreated)
	ch.Subscribe(channel.EventPollOptionVoted, s.onPollOptionVoted)
	ch.Subscribe(channel.EventPollEnded, s.onPollEnded)

	if config.Observer != nil {
		for _, eventType := range []channel.EventType{
			channel.EventSnapshot,
			channel.EventItemCreated,
			channel.EventItemPatched,
			channel.EventItemVoted,
			channel.EventPollCreated,
			channel.EventPollOptionVoted,
			channel.EventPollEnded,
		} {
			eventType := eventType
			ch.Subscribe(eventType, func(event any) {
				config.Observer(eventType, event)
			})
		}
	}

	if err := ch.Connect(ctx); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"session":  config.SessionID,
		"identity": resolved,
	}).Info("Joined session")

	return s, nil
}

func (s *Session) onSnapshot(event any) {
	if evt, ok := event.(models.SnapshotEvent); ok {
		s.feed.ReplaceAll(evt.Items)
	}
}

func (s *Session) onItemCreated(event any) {
	if evt, ok := event.(models.ItemCreatedEvent); ok {
		s.feed.Insert(evt.Item)
	}
}

func (s *Session) onItemPatched(event any) {
	if evt, ok := event.(models.ItemPatchedEvent); ok {
		s.feed.Patch(evt.ID, evt.Patch)
	}
}

func (s *Session) onItemVoted(event any) {
	if evt, ok := event.(models.ItemVotedEvent); ok {
		s.feed.IncrementVote(evt.ID, evt.Voter)
	}
}

func (s *Session) onPollCreated(event any) {
	if evt, ok := event.(models.PollCreatedEvent); ok {
		s.poll.SetActive(evt.Poll)
	}
}

func (s *Session) onPollOptionVoted(event any) {
	if evt, ok := event.(models.PollOptionVotedEvent); ok {
		s.poll.VoteOption(evt.PollID, evt.OptionText)
	}
}

func (s *Session) onPollEnded(event any) {
	if evt, ok := event.(models.PollEndedEvent); ok {
		s.poll.End(evt.PollID)
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Identity returns the resolved identity tagging this client's actions.
func (s *Session) Identity() string {
	return s.identity
}

// Status reports the connection state.
func (s *Session) Status() channel.Status {
	return s.channel.Status()
}

// Feed returns the feed items in current rank order.
func (s *Session) Feed() []models.FeedItem {
	return s.feed.All()
}

// HasVoted reports whether this client's identity voted on the item.
func (s *Session) HasVoted(itemID string) bool {
	return s.feed.HasVoted(itemID, s.identity)
}

// Poll returns the current poll, or nil if none was created yet.
func (s *Session) Poll() *models.Poll {
	return s.poll.Current()
}

// Subscribe registers an extra handler on the underlying channel, e.g.
// for the bridge's SSE fan-out. Handlers registered here stop firing
// the moment Close runs.
func (s *Session) Subscribe(eventType channel.EventType, handler channel.Handler) {
	s.channel.Subscribe(eventType, handler)
}

// SubmitComment publishes a new comment action.
func (s *Session) SubmitComment(text string) error {
	return s.submitter.SubmitComment(text)
}

// CastUpvote publishes an upvote for the item.
func (s *Session) CastUpvote(itemID string) error {
	return s.submitter.CastUpvote(itemID)
}

// PushQuestion publishes a moderator question update.
func (s *Session) PushQuestion(text string) error {
	return s.submitter.PushQuestion(text)
}

// CreatePoll publishes a poll creation.
func (s *Session) CreatePoll(question string, options []string) error {
	return s.submitter.CreatePoll(question, options)
}

// EndPoll publishes an end-poll action.
func (s *Session) EndPoll(pollID string) error {
	return s.submitter.EndPoll(pollID)
}

// Close tears the session down exactly once. After Close no handler
// fires and the stores hold their last observed state.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.channel.Disconnect()
	})
}
