package domain

// Channel identifies the messaging transport a message arrived through.
type Channel string

const (
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelTelegram Channel = "TELEGRAM"
	ChannelAPI      Channel = "API"
)

func (c Channel) String() string {
	return string(c)
}

func (c Channel) IsValid() bool {
	switch c {
	case ChannelWhatsApp, ChannelTelegram, ChannelAPI:
		return true
	default:
		return false
	}
}

// PhoneNative reports whether the channel's raw identifier is a phone number.
// For phone-native channels the chat-id lookup path is skipped.
func (c Channel) PhoneNative() bool {
	return c == ChannelWhatsApp
}

// InboundMessage is a channel-agnostic incoming message, already stripped of
// transport framing by the webhook controllers.
type InboundMessage struct {
	FromID     string
	Text       string
	Channel    Channel
	SenderName string
}

// Reply is the ordered list of outbound message parts the state machine
// produced for one turn. Delivery iteration is owned by the dispatcher; a
// failure on one part does not block the others.
type Reply struct {
	Parts []string
}

// Primary returns the first part, the synchronous answer for API callers.
func (r *Reply) Primary() string {
	if r == nil || len(r.Parts) == 0 {
		return ""
	}
	return r.Parts[0]
}

func NewReply(parts ...string) *Reply {
	return &Reply{Parts: parts}
}
