package poll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/models"
	"huddle/poll"
)

func twoOptions() []models.PollOption {
	return []models.PollOption{
		{Text: "yes"},
		{Text: "no"},
	}
}

func TestNewPollReplacesPreviousOne(t *testing.T) {
	tracker := poll.NewTracker()

	tracker.SetActive(models.Poll{ID: "p1", Question: "first?", Options: twoOptions()})
	tracker.VoteOption("p1", "yes")
	tracker.VoteOption("p1", "yes")

	tracker.SetActive(models.Poll{ID: "p2", Question: "second?", Options: twoOptions()})

	current := tracker.Current()
	require.NotNil(t, current)
	assert.Equal(t, "p2", current.ID)
	assert.Equal(t, models.PollActive, current.State)

	// No trace of p1's tallies remains
	for _, option := range current.Options {
		assert.Equal(t, 0, option.VoteCount)
	}
}

func TestVoteOptionDropsStaleEvents(t *testing.T) {
	tests := []struct {
		name       string
		pollID     string
		optionText string
	}{
		{
			name:       "unknown poll id",
			pollID:     "p-gone",
			optionText: "yes",
		},
		{
			name:       "unknown option",
			pollID:     "p1",
			optionText: "maybe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := poll.NewTracker()
			tracker.SetActive(models.Poll{ID: "p1", Question: "q?", Options: twoOptions()})

			tracker.VoteOption(tt.pollID, tt.optionText)

			current := tracker.Current()
			require.NotNil(t, current)
			assert.Equal(t, 0, current.Options[0].VoteCount)
			assert.Equal(t, 0, current.Options[1].VoteCount)
		})
	}
}

func TestVoteOptionAfterEndIsANoOp(t *testing.T) {
	tracker := poll.NewTracker()
	tracker.SetActive(models.Poll{ID: "p1", Question: "q?", Options: twoOptions()})
	tracker.VoteOption("p1", "yes")
	tracker.End("p1")

	tracker.VoteOption("p1", "yes")

	current := tracker.Current()
	require.NotNil(t, current)
	assert.Equal(t, models.PollEnded, current.State)
	assert.Equal(t, 1, current.Options[0].VoteCount)
}

func TestEndKeepsFinalTalliesReadable(t *testing.T) {
	tracker := poll.NewTracker()
	tracker.SetActive(models.Poll{ID: "p1", Question: "q?", Options: twoOptions()})
	tracker.VoteOption("p1", "yes")
	tracker.VoteOption("p1", "no")
	tracker.VoteOption("p1", "yes")

	tracker.End("p1")

	current := tracker.Current()
	require.NotNil(t, current)
	assert.Equal(t, models.PollEnded, current.State)
	assert.Equal(t, 2, current.Options[0].VoteCount)
	assert.Equal(t, 1, current.Options[1].VoteCount)
}

func TestEndUnknownPollIsANoOp(t *testing.T) {
	tracker := poll.NewTracker()
	tracker.SetActive(models.Poll{ID: "p1", Question: "q?", Options: twoOptions()})

	tracker.End("p-gone")

	current := tracker.Current()
	require.NotNil(t, current)
	assert.Equal(t, models.PollActive, current.State)
}

func TestCurrentReturnsACopy(t *testing.T) {
	tracker := poll.NewTracker()
	tracker.SetActive(models.Poll{ID: "p1", Question: "q?", Options: twoOptions()})

	copied := tracker.Current()
	copied.Options[0].VoteCount = 99

	assert.Equal(t, 0, tracker.Current().Options[0].VoteCount)
}

func TestCurrentIsNilBeforeAnyPoll(t *testing.T) {
	assert.Nil(t, poll.NewTracker().Current())
}
