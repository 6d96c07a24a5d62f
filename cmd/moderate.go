package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"

	"huddle/actions"
	"huddle/models"
	"huddle/session"
)

const (
	actionPushQuestion = "push question"
	actionCreatePoll   = "create poll"
	actionEndPoll      = "end poll"
	actionShowState    = "show state"
	actionQuit         = "quit"
)

// moderateCmd drives moderator actions interactively. Access control is
// not enforced here; whoever gates access to this command is expected
// to have checked the moderator role already.
func moderateCmd() *cli.Command {
	return &cli.Command{
		Name:  "moderate",
		Usage: "Join a session and run moderator actions interactively",
		Description: `Joins a live session and offers an interactive prompt for the
moderator actions: pushing a question update to all participants,
launching a poll and ending the current poll.

All actions are fire-and-forget; the session state shown by "show
state" reflects what the server has echoed back, not what was sent.`,
		Flags: sessionFlags(),
		Action: func(ctx *cli.Context) error {
			cfg, err := resolveSessionConfig(ctx)
			if err != nil {
				return err
			}

			s, err := session.Join(ctx.Context, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			for {
				choice, err := prompt.New().Ask("Action:").Choose([]string{
					actionPushQuestion,
					actionCreatePoll,
					actionEndPoll,
					actionShowState,
					actionQuit,
				})
				if err != nil {
					return err
				}

				switch choice {
				case actionPushQuestion:
					text, err := prompt.New().Ask("Question:").Input("")
					if err != nil {
						return err
					}
					report(s.PushQuestion(text))

				case actionCreatePoll:
					question, err := prompt.New().Ask("Poll question:").Input("")
					if err != nil {
						return err
					}
					optionsInput, err := prompt.New().Ask("Options (comma separated):").Input("yes, no")
					if err != nil {
						return err
					}
					report(s.CreatePoll(question, strings.Split(optionsInput, ",")))

				case actionEndPoll:
					poll := s.Poll()
					if poll == nil {
						fmt.Println("No poll in this session yet")
						continue
					}
					if poll.State != models.PollActive {
						fmt.Println("The current poll has already ended")
						continue
					}
					report(s.EndPoll(poll.ID))

				case actionShowState:
					showState(s)

				case actionQuit:
					return nil
				}
			}
		},
	}
}

func report(err error) {
	if err == nil {
		fmt.Println("Sent")
		return
	}
	if actions.IsValidation(err) {
		fmt.Println("Rejected:", err)
		return
	}
	fmt.Println("Failed:", err)
}

func showState(s *session.Session) {
	state := struct {
		Status string            `json:"status"`
		Feed   []models.FeedItem `json:"feed"`
		Poll   *models.Poll      `json:"poll,omitempty"`
	}{
		Status: string(s.Status()),
		Feed:   s.Feed(),
		Poll:   s.Poll(),
	}

	if data, err := json.MarshalIndent(state, "", "  "); err == nil {
		fmt.Println(string(data))
	}
}
