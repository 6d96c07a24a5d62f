package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/actions"
	"huddle/channel"
	"huddle/models"
	"huddle/server"
)

// fakeLive satisfies server.Live without a websocket behind it.
type fakeLive struct {
	feed     []models.FeedItem
	poll     *models.Poll
	comments []string
	votes    []string
	actErr   error
	handlers map[channel.EventType][]channel.Handler
}

func (f *fakeLive) ID() string              { return "s1" }
func (f *fakeLive) Identity() string        { return "anon-test" }
func (f *fakeLive) Status() channel.Status  { return channel.StatusConnected }
func (f *fakeLive) Feed() []models.FeedItem { return f.feed }
func (f *fakeLive) Poll() *models.Poll      { return f.poll }

func (f *fakeLive) Subscribe(eventType channel.EventType, handler channel.Handler) {
	if f.handlers == nil {
		f.handlers = make(map[channel.EventType][]channel.Handler)
	}
	f.handlers[eventType] = append(f.handlers[eventType], handler)
}

func (f *fakeLive) fire(eventType channel.EventType, event any) {
	for _, handler := range f.handlers[eventType] {
		handler(event)
	}
}

func (f *fakeLive) SubmitComment(text string) error {
	f.comments = append(f.comments, text)
	return f.actErr
}

func (f *fakeLive) CastUpvote(itemID string) error {
	f.votes = append(f.votes, itemID)
	return f.actErr
}

func (f *fakeLive) PushQuestion(text string) error              { return f.actErr }
func (f *fakeLive) CreatePoll(q string, options []string) error { return f.actErr }
func (f *fakeLive) EndPoll(pollID string) error                 { return f.actErr }

func decodeBody(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&decoded))
	return decoded
}

func TestGetSession(t *testing.T) {
	live := &fakeLive{}
	app := server.Server(&server.ServerConfig{Session: live, Broadcaster: server.NewBroadcaster()})

	res, err := app.Test(httptest.NewRequest("GET", "/session", nil))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 200, res.StatusCode)
	body := decodeBody(t, res.Body)
	assert.Equal(t, "s1", body["id"])
	assert.Equal(t, "anon-test", body["identity"])
}

func TestGetFeedHonorsLimit(t *testing.T) {
	live := &fakeLive{feed: []models.FeedItem{
		{ID: "a", VoteCount: 5},
		{ID: "b", VoteCount: 3},
		{ID: "c", VoteCount: 1},
	}}
	app := server.Server(&server.ServerConfig{Session: live, Broadcaster: server.NewBroadcaster()})

	res, err := app.Test(httptest.NewRequest("GET", "/session/feed?limit=2", nil))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 200, res.StatusCode)
	body := decodeBody(t, res.Body)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].(map[string]any)["id"])
}

func TestGetPollBeforeAnyPoll(t *testing.T) {
	app := server.Server(&server.ServerConfig{Session: &fakeLive{}, Broadcaster: server.NewBroadcaster()})

	res, err := app.Test(httptest.NewRequest("GET", "/session/poll", nil))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 404, res.StatusCode)
}

func TestGetPoll(t *testing.T) {
	live := &fakeLive{poll: &models.Poll{
		ID:       "p1",
		Question: "lunch?",
		State:    models.PollActive,
		Options:  []models.PollOption{{Text: "pizza"}, {Text: "sushi"}},
	}}
	app := server.Server(&server.ServerConfig{Session: live, Broadcaster: server.NewBroadcaster()})

	res, err := app.Test(httptest.NewRequest("GET", "/session/poll", nil))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 200, res.StatusCode)
	body := decodeBody(t, res.Body)
	assert.Equal(t, "p1", body["id"])
}

func TestPostCommentAccepted(t *testing.T) {
	live := &fakeLive{}
	app := server.Server(&server.ServerConfig{Session: live, Broadcaster: server.NewBroadcaster()})

	req := httptest.NewRequest("POST", "/session/comments", bytes.NewBufferString(`{"text":"hello"}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 202, res.StatusCode)
	assert.Equal(t, []string{"hello"}, live.comments)
}

func TestPostCommentValidationRejection(t *testing.T) {
	live := &fakeLive{actErr: &actions.ValidationError{Err: actions.ErrEmptyText}}
	app := server.Server(&server.ServerConfig{Session: live, Broadcaster: server.NewBroadcaster()})

	req := httptest.NewRequest("POST", "/session/comments", bytes.NewBufferString(`{"text":"   "}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 422, res.StatusCode)
}

func TestPostVote(t *testing.T) {
	live := &fakeLive{}
	app := server.Server(&server.ServerConfig{Session: live, Broadcaster: server.NewBroadcaster()})

	req := httptest.NewRequest("POST", "/session/votes", bytes.NewBufferString(`{"itemId":"x1"}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 202, res.StatusCode)
	assert.Equal(t, []string{"x1"}, live.votes)
}

func TestDeletePoll(t *testing.T) {
	live := &fakeLive{}
	app := server.Server(&server.ServerConfig{Session: live, Broadcaster: server.NewBroadcaster()})

	res, err := app.Test(httptest.NewRequest("DELETE", "/session/poll/p1", nil))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 202, res.StatusCode)
}

func TestWireBroadcastForwardsAllLiveEvents(t *testing.T) {
	live := &fakeLive{}
	bc := server.NewBroadcaster()
	server.WireBroadcast(live, bc)

	events := make(chan server.Event, 16)
	bc.AddClient("c1", events)
	defer bc.RemoveClient("c1")

	note := "updated"
	live.fire(channel.EventItemCreated, models.ItemCreatedEvent{Item: models.FeedItem{ID: "x1"}})
	live.fire(channel.EventItemPatched, models.ItemPatchedEvent{ID: "x1", Patch: models.ItemPatch{Text: &note}})
	live.fire(channel.EventItemVoted, models.ItemVotedEvent{ID: "x1", Voter: "alice"})
	live.fire(channel.EventPollCreated, models.PollCreatedEvent{Poll: models.Poll{ID: "p1"}})
	live.fire(channel.EventPollOptionVoted, models.PollOptionVotedEvent{PollID: "p1", OptionText: "pizza"})
	live.fire(channel.EventPollEnded, models.PollEndedEvent{PollID: "p1"})

	names := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		select {
		case event := <-events:
			names = append(names, event.Name)
		default:
			t.Fatal("expected six broadcast events")
		}
	}

	assert.Equal(t, []string{
		"item-created",
		"item-patched",
		"item-voted",
		"poll-created",
		"poll-option-voted",
		"poll-ended",
	}, names)
}

func TestPostWithMalformedBody(t *testing.T) {
	app := server.Server(&server.ServerConfig{Session: &fakeLive{}, Broadcaster: server.NewBroadcaster()})

	req := httptest.NewRequest("POST", "/session/comments", bytes.NewBufferString(`{`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 400, res.StatusCode)
}
