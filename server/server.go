package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"huddle/actions"
	"huddle/archive"
	"huddle/channel"
	"huddle/models"
)

// Live is the read surface plus action entry points of a joined
// session. Satisfied by session.Session; tests use a fake.
type Live interface {
	ID() string
	Identity() string
	Status() channel.Status
	Feed() []models.FeedItem
	Poll() *models.Poll
	Subscribe(eventType channel.EventType, handler channel.Handler)
	SubmitComment(text string) error
	CastUpvote(itemID string) error
	PushQuestion(text string) error
	CreatePoll(question string, options []string) error
	EndPoll(pollID string) error
}

type ServerConfig struct {

	// The joined session the bridge exposes
	Session Live

	// Broadcast channel to pass live events to SSE clients
	Broadcaster *Broadcaster

	// Optional archive for ended polls and feed snapshots
	Archive *archive.Store
}

// WireBroadcast forwards the session's inbound events to SSE clients.
// Call it before serving so no event slips past the fan-out.
func WireBroadcast(live Live, bc *Broadcaster) {
	live.Subscribe(channel.EventItemCreated, func(event any) {
		if evt, ok := event.(models.ItemCreatedEvent); ok {
			bc.Broadcast(Event{Name: "item-created", Data: evt.Item})
		}
	})
	live.Subscribe(channel.EventItemPatched, func(event any) {
		if evt, ok := event.(models.ItemPatchedEvent); ok {
			bc.Broadcast(Event{Name: "item-patched", Data: fiber.Map{"id": evt.ID, "patch": evt.Patch}})
		}
	})
	live.Subscribe(channel.EventItemVoted, func(event any) {
		if evt, ok := event.(models.ItemVotedEvent); ok {
			bc.Broadcast(Event{Name: "item-voted", Data: fiber.Map{"id": evt.ID}})
		}
	})
	live.Subscribe(channel.EventPollCreated, func(event any) {
		if evt, ok := event.(models.PollCreatedEvent); ok {
			bc.Broadcast(Event{Name: "poll-created", Data: evt.Poll})
		}
	})
	live.Subscribe(channel.EventPollOptionVoted, func(event any) {
		if evt, ok := event.(models.PollOptionVotedEvent); ok {
			bc.Broadcast(Event{Name: "poll-option-voted", Data: fiber.Map{"pollId": evt.PollID, "optionText": evt.OptionText}})
		}
	})
	live.Subscribe(channel.EventPollEnded, func(event any) {
		if evt, ok := event.(models.PollEndedEvent); ok {
			bc.Broadcast(Event{Name: "poll-ended", Data: fiber.Map{"pollId": evt.PollID}})
		}
	})
}

// Server returns a fiber.App exposing one live session as a local read
// bridge: JSON queries, action endpoints and an SSE event stream.
func Server(config *ServerConfig) *fiber.App {

	live := config.Session
	bc := config.Broadcaster

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		stop := time.Now()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:3001",
		AllowHeaders: "Cache-Control, Content-Type",
	}))

	app.Get("/session", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"id":       live.ID(),
			"identity": live.Identity(),
			"status":   live.Status(),
		})
	})

	app.Get("/session/feed", func(c *fiber.Ctx) error {
		items := live.Feed()

		limit := c.QueryInt("limit", 0)
		if limit > 0 && limit < len(items) {
			items = items[:limit]
		}

		return c.JSON(fiber.Map{"items": items})
	})

	app.Get("/session/poll", func(c *fiber.Ctx) error {
		poll := live.Poll()
		if poll == nil {
			return c.Status(404).JSON(fiber.Map{"error": "no poll in this session yet"})
		}
		return c.JSON(poll)
	})

	app.Post("/session/comments", func(c *fiber.Ctx) error {
		var body struct {
			Text string `json:"text"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		return submitted(c, live.SubmitComment(body.Text))
	})

	app.Post("/session/votes", func(c *fiber.Ctx) error {
		var body struct {
			ItemID string `json:"itemId"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		return submitted(c, live.CastUpvote(body.ItemID))
	})

	app.Post("/session/question", func(c *fiber.Ctx) error {
		var body struct {
			Text string `json:"text"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		return submitted(c, live.PushQuestion(body.Text))
	})

	app.Post("/session/poll", func(c *fiber.Ctx) error {
		var body struct {
			Question string   `json:"question"`
			Options  []string `json:"options"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		return submitted(c, live.CreatePoll(body.Question, body.Options))
	})

	app.Delete("/session/poll/:id", func(c *fiber.Ctx) error {
		return submitted(c, live.EndPoll(c.Params("id")))
	})

	if config.Archive != nil {
		app.Get("/archive/polls", func(c *fiber.Ctx) error {
			results, err := config.Archive.ListPollResults(c.Context(), live.ID())
			if err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("Error listing archived polls")
				return c.Status(500).JSON(fiber.Map{"error": "failed to list archived polls"})
			}
			return c.JSON(fiber.Map{"polls": results})
		})
	}

	app.Get("/session/sse", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		events := make(chan Event, 10) // Buffered channel
		aliveChan := time.NewTicker(5 * time.Second)

		defer aliveChan.Stop()

		bc.AddClient(key, events)

		cleanup := func() {
			log.Infof("Cleaning up SSE stream for client: %s", key)
			bc.RemoveClient(key)
		}

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cleanup()

			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-aliveChan.C:
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case event, ok := <-events:
					if !ok {
						log.Warnf("Event channel closed for client %s", key)
						return
					}
					data, err := json.Marshal(event.Data)
					if err != nil {
						log.Errorf("Error marshalling event for client %s: %v", key, err)
						continue
					}
					if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, data); err != nil {
						log.Warnf("Failed to send %s event to client %s: %v", event.Name, key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush %s event for client %s: %v", event.Name, key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	return app
}

// submitted maps an action outcome to a response: local validation
// rejections are 422, everything else is fire-and-forget and answers
// 202 before any server-side effect is visible.
func submitted(c *fiber.Ctx, err error) error {
	if err != nil {
		if actions.IsValidation(err) {
			return c.Status(422).JSON(fiber.Map{"error": err.Error()})
		}
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Unexpected action error")
		return c.Status(500).JSON(fiber.Map{"error": "action failed"})
	}
	return c.Status(202).JSON(fiber.Map{"status": "accepted"})
}
