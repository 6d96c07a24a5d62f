package channel

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"

	"huddle/models"
)

// envelope is the wire framing for every message in both directions.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encodeEnvelope(eventType EventType, payload any) (envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return envelope{Type: string(eventType), Payload: raw}, nil
}

// Wire shapes for inbound payloads. These exist so that validation has
// one enforcement point; handlers only ever see the typed events from
// the models package.

type wireSnapshot struct {
	Items []models.FeedItem `json:"items"`
}

type wireItemCreated struct {
	Item models.FeedItem `json:"item"`
}

type wireItemPatched struct {
	ID          string            `json:"id"`
	Text        *string           `json:"text,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

type wireItemVoted struct {
	ID    string `json:"id"`
	Voter string `json:"voter"`
}

type wirePollCreated struct {
	Poll models.Poll `json:"poll"`
}

type wirePollOptionVoted struct {
	PollID     string `json:"pollId"`
	OptionText string `json:"optionText"`
}

type wirePollEnded struct {
	PollID string `json:"pollId"`
}

// decodeEvent parses one inbound frame into a typed event. An error
// means the frame is malformed and must be dropped, never that the
// dispatch loop should stop.
func decodeEvent(data []byte) (EventType, any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	eventType := EventType(env.Type)

	switch eventType {
	case EventSnapshot:
		var wire wireSnapshot
		if err := json.Unmarshal(env.Payload, &wire); err != nil {
			return eventType, nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		// Items without an id cannot be addressed by later events, so
		// drop them here rather than letting them rot in the store.
		items := lo.Filter(wire.Items, func(item models.FeedItem, _ int) bool {
			return item.ID != ""
		})
		return eventType, models.SnapshotEvent{Items: items}, nil

	case EventItemCreated:
		var wire wireItemCreated
		if err := json.Unmarshal(env.Payload, &wire); err != nil {
			return eventType, nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		if wire.Item.ID == "" {
			return eventType, nil, fmt.Errorf("itemCreated event is missing id")
		}
		return eventType, models.ItemCreatedEvent{Item: wire.Item}, nil

	case EventItemPatched:
		var wire wireItemPatched
		if err := json.Unmarshal(env.Payload, &wire); err != nil {
			return eventType, nil, fmt.Errorf("failed to unmarshal patch: %w", err)
		}
		if wire.ID == "" {
			return eventType, nil, fmt.Errorf("itemPatched event is missing id")
		}
		return eventType, models.ItemPatchedEvent{
			ID:    wire.ID,
			Patch: models.ItemPatch{Text: wire.Text, Annotations: wire.Annotations},
		}, nil

	case EventItemVoted:
		var wire wireItemVoted
		if err := json.Unmarshal(env.Payload, &wire); err != nil {
			return eventType, nil, fmt.Errorf("failed to unmarshal vote: %w", err)
		}
		if wire.ID == "" {
			return eventType, nil, fmt.Errorf("itemVoted event is missing id")
		}
		if wire.Voter == "" {
			return eventType, nil, fmt.Errorf("itemVoted event is missing voter")
		}
		return eventType, models.ItemVotedEvent{ID: wire.ID, Voter: wire.Voter}, nil

	case EventPollCreated:
		var wire wirePollCreated
		if err := json.Unmarshal(env.Payload, &wire); err != nil {
			return eventType, nil, fmt.Errorf("failed to unmarshal poll: %w", err)
		}
		if wire.Poll.ID == "" {
			return eventType, nil, fmt.Errorf("pollCreated event is missing id")
		}
		if len(wire.Poll.Options) < 2 {
			return eventType, nil, fmt.Errorf("pollCreated event has fewer than two options")
		}
		if wire.Poll.State == "" {
			wire.Poll.State = models.PollActive
		}
		return eventType, models.PollCreatedEvent{Poll: wire.Poll}, nil

	case EventPollOptionVoted:
		var wire wirePollOptionVoted
		if err := json.Unmarshal(env.Payload, &wire); err != nil {
			return eventType, nil, fmt.Errorf("failed to unmarshal poll vote: %w", err)
		}
		if wire.PollID == "" || wire.OptionText == "" {
			return eventType, nil, fmt.Errorf("pollOptionVoted event is missing pollId or optionText")
		}
		return eventType, models.PollOptionVotedEvent{PollID: wire.PollID, OptionText: wire.OptionText}, nil

	case EventPollEnded:
		var wire wirePollEnded
		if err := json.Unmarshal(env.Payload, &wire); err != nil {
			return eventType, nil, fmt.Errorf("failed to unmarshal poll end: %w", err)
		}
		if wire.PollID == "" {
			return eventType, nil, fmt.Errorf("pollEnded event is missing pollId")
		}
		return eventType, models.PollEndedEvent{PollID: wire.PollID}, nil
	}

	return eventType, nil, fmt.Errorf("unknown event type %q", env.Type)
}
