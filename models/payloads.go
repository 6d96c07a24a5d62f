package models

// Outbound action payloads. All sends are fire-and-forget; none of
// these carry an acknowledgement token.

type JoinPayload struct {
	SessionID string `json:"sessionId"`
	Identity  string `json:"identity"`
}

type NewCommentPayload struct {
	Text     string `json:"text"`
	Identity string `json:"identity"`
}

type UpvotePayload struct {
	ItemID   string `json:"itemId"`
	Identity string `json:"identity"`
}

type PushQuestionPayload struct {
	Text string `json:"text"`
}

type CreatePollPayload struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type EndPollPayload struct {
	PollID string `json:"pollId"`
}
