package coordinator

import (
	"context"
)

// Command actions understood by Dispatch.
const (
	ActionTriggerAutofill  = "trigger-autofill"
	ActionGetActiveProfile = "get-active-profile"
	ActionSetActiveProfile = "set-active-profile"
	ActionDetectForms      = "detect-forms"
	ActionClearHighlights  = "clear-highlights"
)

type Command struct {
	Action    string `json:"action" binding:"required"`
	ProfileID string `json:"profileId,omitempty"`
}

// Response is the reply to a Command: either data or a human readable error.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func fail(err error) Response {
	return Response{Success: false, Error: Message(err)}
}

// Dispatch executes one host command against a session. Callers hold the
// session through Do.
func (c *Coordinator) Dispatch(ctx context.Context, s *Session, cmd Command) Response {
	switch cmd.Action {
	case ActionTriggerAutofill:
		result, err := c.AutofillSession(ctx, s, cmd.ProfileID)
		if err != nil {
			return fail(err)
		}
		return Response{Success: true, Data: result.Summary}

	case ActionGetActiveProfile:
		return Response{Success: true, Data: map[string]string{"profileId": s.ActiveProfile()}}

	case ActionSetActiveProfile:
		if cmd.ProfileID != "" {
			if _, err := c.loadProfile(ctx, cmd.ProfileID); err != nil {
				return fail(err)
			}
		}
		s.SetActiveProfile(cmd.ProfileID)
		return Response{Success: true, Data: map[string]string{"profileId": cmd.ProfileID}}

	case ActionDetectForms:
		if err := s.refresh(ctx); err != nil {
			return fail(err)
		}
		return Response{Success: true, Data: map[string]int{"count": len(c.detector.Detect(s.Doc))}}

	case ActionClearHighlights:
		n, err := c.ClearSessionHighlights(ctx, s)
		if err != nil {
			return fail(err)
		}
		return Response{Success: true, Data: map[string]int{"cleared": n}}
	}
	return fail(ErrUnknownCommand)
}
