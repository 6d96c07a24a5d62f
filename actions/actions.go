package actions

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"huddle/channel"
	"huddle/models"
)

// Validation sentinels. These are the only errors an action surfaces
// to the caller; they are decided locally and never reach the wire.
var (
	ErrEmptyText        = errors.New("text is empty")
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrTooFewOptions    = errors.New("a poll needs at least two options")
	ErrNotAuthenticated = errors.New("no identity resolved")
	ErrMissingItem      = errors.New("item id is empty")
	ErrMissingPoll      = errors.New("poll id is empty")
)

// ValidationError wraps one of the sentinels above so callers can
// distinguish a local rejection from anything else with errors.As.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation rejected: %s", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func reject(err error) error {
	return &ValidationError{Err: err}
}

// IsValidation reports whether err is a local validation rejection.
func IsValidation(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation)
}

// VoteChecker answers whether an identity already voted on an item.
// Satisfied by the feed store.
type VoteChecker interface {
	HasVoted(id string, voter string) bool
}

// Submitter translates user intents into outbound channel messages.
// Publishes are fire-and-forget: a transport failure is logged and
// absorbed, never surfaced, because the connection status already
// tells the caller everything it can act on.
type Submitter struct {
	publisher channel.Publisher
	votes     VoteChecker
	identity  string
}

func NewSubmitter(publisher channel.Publisher, votes VoteChecker, identity string) *Submitter {
	return &Submitter{
		publisher: publisher,
		votes:     votes,
		identity:  identity,
	}
}

// SubmitComment publishes a new comment. The item is not inserted
// locally; it appears in the feed only when the server's created event
// comes back with a server-assigned id. Optimistic insert plus server
// echo would double-count.
func (s *Submitter) SubmitComment(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return reject(ErrEmptyText)
	}

	s.publish(channel.EventNewComment, models.NewCommentPayload{
		Text:     trimmed,
		Identity: s.identity,
	})
	return nil
}

// CastUpvote publishes an upvote for the item. Requires a resolved
// identity. A vote this identity already cast locally is suppressed
// without publishing; redelivery on the inbound side is absorbed by
// the store's idempotent increment.
func (s *Submitter) CastUpvote(itemID string) error {
	if s.identity == "" {
		return reject(ErrNotAuthenticated)
	}
	if itemID == "" {
		return reject(ErrMissingItem)
	}

	if s.votes != nil && s.votes.HasVoted(itemID, s.identity) {
		log.WithFields(log.Fields{
			"item": itemID,
		}).Debug("Suppressing duplicate upvote")
		return nil
	}

	s.publish(channel.EventUpvote, models.UpvotePayload{
		ItemID:   itemID,
		Identity: s.identity,
	})
	return nil
}

// PushQuestion publishes a moderator question update. Whether the
// caller is allowed to moderate is the auth collaborator's problem;
// nothing is enforced here.
func (s *Submitter) PushQuestion(text string) error {
	if strings.TrimSpace(text) == "" {
		return reject(ErrEmptyText)
	}

	s.publish(channel.EventPushQuestion, models.PushQuestionPayload{
		Text: strings.TrimSpace(text),
	})
	return nil
}

// CreatePoll publishes a poll creation with at least two non-empty
// options.
func (s *Submitter) CreatePoll(question string, options []string) error {
	if strings.TrimSpace(question) == "" {
		return reject(ErrEmptyQuestion)
	}

	cleaned := make([]string, 0, len(options))
	for _, option := range options {
		if trimmed := strings.TrimSpace(option); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) < 2 {
		return reject(ErrTooFewOptions)
	}

	s.publish(channel.EventCreatePoll, models.CreatePollPayload{
		Question: strings.TrimSpace(question),
		Options:  cleaned,
	})
	return nil
}

// EndPoll publishes an end-poll action. Callers wanting to keep the
// final tallies should snapshot them before the next poll is created;
// the tracker only holds one poll.
func (s *Submitter) EndPoll(pollID string) error {
	if pollID == "" {
		return reject(ErrMissingPoll)
	}

	s.publish(channel.EventEndPoll, models.EndPollPayload{PollID: pollID})
	return nil
}

func (s *Submitter) publish(eventType channel.EventType, payload any) {
	if err := s.publisher.Publish(eventType, payload); err != nil {
		log.WithFields(log.Fields{
			"event": eventType,
			"error": err,
		}).Warn("Action publish failed")
	}
}
