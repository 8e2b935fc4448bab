package whatsapp

import "strings"

const (
	GroupSuffix      = "@g.us"
	IndividualSuffix = "@c.us"

	// Phone numbers in international format never exceed 15 digits, so
	// anything longer is taken to be a group id.
	maxIndividualLength = 15
)

// ChatID addresses an individual or group conversation, e.g.
// "5511999999999@c.us" or "120363025246125888@g.us".
type ChatID string

// ResolveChatID derives the chat a raw recipient refers to.
func ResolveChatID(raw string) ChatID {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.Contains(raw, GroupSuffix):
		return ChatID(raw)
	case len(raw) > maxIndividualLength:
		return ChatID(raw + GroupSuffix)
	default:
		return ChatID(raw + IndividualSuffix)
	}
}

func (c ChatID) IsGroup() bool { return strings.HasSuffix(string(c), GroupSuffix) }

func (c ChatID) String() string { return string(c) }
