package models

// FeedItem is one entry in a session's live feed. The server assigns
// ids; the client never invents one.
type FeedItem struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	VoteCount   int               `json:"voteCount"`
	Voters      []string          `json:"voters,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// ItemPatch carries the mutable fields of a feed item. Nil fields are
// left untouched on merge.
type ItemPatch struct {
	Text        *string           `json:"text,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

type PollState string

const (
	PollActive PollState = "active"
	PollEnded  PollState = "ended"
)

type PollOption struct {
	Text      string `json:"text"`
	VoteCount int    `json:"voteCount"`
}

// Poll is the single-slot live poll for a session.
type Poll struct {
	ID       string       `json:"id"`
	Question string       `json:"question"`
	Options  []PollOption `json:"options"`
	State    PollState    `json:"state"`
}

// SnapshotEvent carries the full feed state sent once on join.
type SnapshotEvent struct {
	Items []FeedItem
}

// ItemCreatedEvent fired when the server accepts a new comment.
type ItemCreatedEvent struct {
	Item FeedItem
}

// ItemPatchedEvent fired when item fields change, including
// annotations attached by the analysis service.
type ItemPatchedEvent struct {
	ID    string
	Patch ItemPatch
}

// ItemVotedEvent fired when any participant upvotes an item.
type ItemVotedEvent struct {
	ID    string
	Voter string
}

// PollCreatedEvent fired when the moderator launches a poll.
type PollCreatedEvent struct {
	Poll Poll
}

// PollOptionVotedEvent fired when a participant votes on the live poll.
type PollOptionVotedEvent struct {
	PollID     string
	OptionText string
}

// PollEndedEvent fired when the moderator closes the poll.
type PollEndedEvent struct {
	PollID string
}
