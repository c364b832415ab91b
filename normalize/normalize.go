// Package normalize implements §4.7: accepting the flexible input shapes
// connect() takes, and extracting the final text from a ConnectResponse.
package normalize

import (
	"fmt"

	"github.com/the-artinet-project/router"
)

// Input accepts any of the shapes §4.7 lists and returns the Session
// connect() should seed a ConnectRequest with. Empty-content messages are
// dropped per §3's Message invariant.
//
//   - string            -> single user message
//   - router.Message    -> [Message]
//   - router.Session    -> used verbatim
//   - router.ConnectRequest (messages only; Options are handled by the caller)
//
// Any other shape is an input error.
func Input(input any) (router.Session, error) {
	switch v := input.(type) {
	case string:
		return dropEmpty(router.Session{{Role: router.RoleUser, Content: v}}), nil
	case router.Message:
		return dropEmpty(router.Session{v}), nil
	case router.Session:
		return dropEmpty(v), nil
	case []router.Message:
		return dropEmpty(router.Session(v)), nil
	case router.ConnectRequest:
		return dropEmpty(router.Session(v.Messages)), nil
	default:
		return nil, fmt.Errorf("normalize: unsupported connect() input type %T", input)
	}
}

func dropEmpty(session router.Session) router.Session {
	out := make(router.Session, 0, len(session))
	for _, msg := range session {
		if msg.Content == "" {
			continue
		}
		if msg.Role == "agent" {
			msg.Role = router.RoleAssistant
		}
		out = append(out, msg)
	}
	return out
}

// FinalText extracts the final assistant text from a ConnectResponse per
// §4.7: the Message.Content string, or the error named in §7 if the final
// message carries no content.
func FinalText(resp router.ConnectResponse) (string, error) {
	if resp.Message.Content != "" {
		return resp.Message.Content, nil
	}
	return "", router.ErrNoContent
}
