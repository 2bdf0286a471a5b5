// send.go builds outgoing waE2E protobuf messages and
// normalizes recipient addresses into JIDs.
package whatsapp

import (
	"fmt"
	"strings"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

// buildTextMessage constructs a text message, quoting the replied-to
// stanza when replyTo is set.
func buildTextMessage(text, replyTo string, chat types.JID) *waE2E.Message {
	if replyTo == "" {
		return &waE2E.Message{Conversation: proto.String(text)}
	}
	return &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(text),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:    proto.String(replyTo),
				Participant: proto.String(chat.String()),
			},
		},
	}
}

// parseJID converts a recipient string to a types.JID. Accepts bare phone
// numbers ("5511999999999") and full JIDs ("5511999999999@s.whatsapp.net").
func parseJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.JID{}, fmt.Errorf("empty JID")
	}

	if strings.Contains(s, "@") {
		return types.ParseJID(s)
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)

	if len(digits) < 10 {
		return types.JID{}, fmt.Errorf("phone number too short: %s", s)
	}

	return types.NewJID(digits, types.DefaultUserServer), nil
}
