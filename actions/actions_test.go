package actions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/actions"
	"huddle/channel"
	"huddle/models"
)

// publishRecorder is a channel.Publisher double that records every
// outbound message.
type publishRecorder struct {
	events   []channel.EventType
	payloads []any
}

func (r *publishRecorder) Publish(eventType channel.EventType, payload any) error {
	r.events = append(r.events, eventType)
	r.payloads = append(r.payloads, payload)
	return nil
}

// voteSet is a VoteChecker double.
type voteSet map[string]string

func (v voteSet) HasVoted(id string, voter string) bool {
	return v[id] == voter
}

func TestSubmitCommentRejectsEmptyText(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "empty string",
			text: "",
		},
		{
			name: "only whitespace",
			text: "   ",
		},
		{
			name: "only newlines and tabs",
			text: "\n\t\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &publishRecorder{}
			submitter := actions.NewSubmitter(recorder, voteSet{}, "alice")

			err := submitter.SubmitComment(tt.text)

			require.Error(t, err)
			assert.True(t, actions.IsValidation(err))
			assert.ErrorIs(t, err, actions.ErrEmptyText)
			assert.Empty(t, recorder.events, "a rejected comment must cause zero publish calls")
		})
	}
}

func TestSubmitCommentPublishesTrimmedText(t *testing.T) {
	recorder := &publishRecorder{}
	submitter := actions.NewSubmitter(recorder, voteSet{}, "alice")

	require.NoError(t, submitter.SubmitComment("  hello world  "))

	require.Len(t, recorder.events, 1)
	assert.Equal(t, channel.EventNewComment, recorder.events[0])
	assert.Equal(t, models.NewCommentPayload{Text: "hello world", Identity: "alice"}, recorder.payloads[0])
}

func TestCastUpvoteRequiresIdentity(t *testing.T) {
	recorder := &publishRecorder{}
	submitter := actions.NewSubmitter(recorder, voteSet{}, "")

	err := submitter.CastUpvote("x1")

	require.Error(t, err)
	assert.True(t, actions.IsValidation(err))
	assert.ErrorIs(t, err, actions.ErrNotAuthenticated)
	assert.Empty(t, recorder.events)
}

func TestCastUpvoteSuppressesDuplicates(t *testing.T) {
	recorder := &publishRecorder{}
	submitter := actions.NewSubmitter(recorder, voteSet{"x1": "alice"}, "alice")

	require.NoError(t, submitter.CastUpvote("x1"))

	assert.Empty(t, recorder.events, "an already-cast vote must not be re-published")
}

func TestCastUpvotePublishes(t *testing.T) {
	recorder := &publishRecorder{}
	submitter := actions.NewSubmitter(recorder, voteSet{}, "alice")

	require.NoError(t, submitter.CastUpvote("x1"))

	require.Len(t, recorder.events, 1)
	assert.Equal(t, channel.EventUpvote, recorder.events[0])
	assert.Equal(t, models.UpvotePayload{ItemID: "x1", Identity: "alice"}, recorder.payloads[0])
}

func TestCreatePollValidation(t *testing.T) {
	tests := []struct {
		name     string
		question string
		options  []string
		expected error
	}{
		{
			name:     "empty question",
			question: "  ",
			options:  []string{"yes", "no"},
			expected: actions.ErrEmptyQuestion,
		},
		{
			name:     "no options",
			question: "lunch?",
			options:  nil,
			expected: actions.ErrTooFewOptions,
		},
		{
			name:     "one option",
			question: "lunch?",
			options:  []string{"pizza"},
			expected: actions.ErrTooFewOptions,
		},
		{
			name:     "blank options do not count",
			question: "lunch?",
			options:  []string{"pizza", "   ", ""},
			expected: actions.ErrTooFewOptions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &publishRecorder{}
			submitter := actions.NewSubmitter(recorder, voteSet{}, "mod")

			err := submitter.CreatePoll(tt.question, tt.options)

			require.Error(t, err)
			assert.True(t, actions.IsValidation(err))
			assert.ErrorIs(t, err, tt.expected)
			assert.Empty(t, recorder.events)
		})
	}
}

func TestCreatePollPublishesCleanedOptions(t *testing.T) {
	recorder := &publishRecorder{}
	submitter := actions.NewSubmitter(recorder, voteSet{}, "mod")

	require.NoError(t, submitter.CreatePoll(" lunch? ", []string{" pizza ", "", "sushi"}))

	require.Len(t, recorder.events, 1)
	assert.Equal(t, channel.EventCreatePoll, recorder.events[0])
	assert.Equal(t, models.CreatePollPayload{
		Question: "lunch?",
		Options:  []string{"pizza", "sushi"},
	}, recorder.payloads[0])
}

func TestPushQuestionRejectsEmptyText(t *testing.T) {
	recorder := &publishRecorder{}
	submitter := actions.NewSubmitter(recorder, voteSet{}, "mod")

	err := submitter.PushQuestion(" ")

	require.Error(t, err)
	assert.ErrorIs(t, err, actions.ErrEmptyText)
	assert.Empty(t, recorder.events)
}

func TestEndPollRequiresID(t *testing.T) {
	recorder := &publishRecorder{}
	submitter := actions.NewSubmitter(recorder, voteSet{}, "mod")

	err := submitter.EndPoll("")

	require.Error(t, err)
	assert.ErrorIs(t, err, actions.ErrMissingPoll)
	assert.Empty(t, recorder.events)
}

func TestEndPollPublishes(t *testing.T) {
	recorder := &publishRecorder{}
	submitter := actions.NewSubmitter(recorder, voteSet{}, "mod")

	require.NoError(t, submitter.EndPoll("p1"))

	require.Len(t, recorder.events, 1)
	assert.Equal(t, channel.EventEndPoll, recorder.events[0])
	assert.Equal(t, models.EndPollPayload{PollID: "p1"}, recorder.payloads[0])
}
