package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Sender identifies who wrote a message and where. GroupID is 0 for
// private messages.
type Sender struct {
	UserID   int64
	GroupID  int64
	Role     string // owner/admin/member in groups, friend/group/other in private
	Nickname string
	Card     string
}

func (s Sender) Private() bool {
	return s.GroupID == 0
}

// Same reports whether both senders are the same user in the same group
// (or both in private).
func (s Sender) Same(o Sender) bool {
	return s.UserID == o.UserID && s.GroupID == o.GroupID
}

func (s Sender) String() string {
	where := "private"
	if !s.Private() {
		where = "group_id=" + strconv.FormatInt(s.GroupID, 10)
	}
	out := fmt.Sprintf("Sender(%s, role:%s, user_id:%d, nickname:%s", where, s.Role, s.UserID, s.Nickname)
	if s.Card != "" {
		out += ", card:" + s.Card
	}
	return out + ")"
}

// Position is a delivery target: a group or a private chat with a user.
type Position struct {
	ID    int64
	Group bool
}

func GroupOf(id int64) Position   { return Position{ID: id, Group: true} }
func PrivateOf(id int64) Position { return Position{ID: id} }

func (p Position) String() string {
	if p.Group {
		return fmt.Sprintf("Group %d", p.ID)
	}
	return fmt.Sprintf("User %d", p.ID)
}

// Message is an inbound chat message.
type Message struct {
	Time      time.Time
	SelfID    int64
	MessageID int64
	Sender    Sender
	Chain     Chain
	// Text is the plain text of Chain, computed once at decode time.
	Text string
}

func (*Message) Kind() Kind { return KindMessage }

func (m *Message) Position() Position {
	if m.Sender.GroupID != 0 {
		return GroupOf(m.Sender.GroupID)
	}
	return PrivateOf(m.Sender.UserID)
}

// ToMe reports whether the message is addressed to the bot: every private
// message is, a group message only when it mentions the bot account.
func (m *Message) ToMe() bool {
	if m.Sender.Private() {
		return true
	}
	for _, id := range m.Chain.Mentions() {
		if id == m.SelfID {
			return true
		}
	}
	return false
}

type wireMessage struct {
	Time          int64           `json:"time"`
	SelfID        int64           `json:"self_id"`
	MessageType   string          `json:"message_type"`
	SubType       string          `json:"sub_type"`
	MessageID     int64           `json:"message_id"`
	UserID        int64           `json:"user_id"`
	GroupID       int64           `json:"group_id"`
	MessageFormat string          `json:"message_format"`
	Message       json.RawMessage `json:"message"`
	Sender        struct {
		UserID   int64  `json:"user_id"`
		Nickname string `json:"nickname"`
		Card     string `json:"card"`
		Role     string `json:"role"`
	} `json:"sender"`
}

// DecodeMessage decodes a message event (or the data of a get_msg reply).
// Only the array message format is accepted.
func DecodeMessage(raw []byte) (*Message, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if w.MessageFormat != "" && w.MessageFormat != "array" {
		return nil, fmt.Errorf("%w %q: configure the gateway to post arrays", ErrUnsupportedFormat, w.MessageFormat)
	}

	var chain Chain
	if len(w.Message) > 0 {
		if err := json.Unmarshal(w.Message, &chain); err != nil {
			return nil, fmt.Errorf("%w: message is not a segment array: %v", ErrUnsupportedFormat, err)
		}
	}

	sender := Sender{
		UserID:   w.Sender.UserID,
		Nickname: w.Sender.Nickname,
		Card:     w.Sender.Card,
	}
	if sender.UserID == 0 {
		sender.UserID = w.UserID
	}
	if w.MessageType == "group" || w.GroupID != 0 {
		sender.GroupID = w.GroupID
		sender.Role = w.Sender.Role
	} else {
		sender.Role = w.SubType
	}

	return &Message{
		Time:      unixTime(w.Time),
		SelfID:    w.SelfID,
		MessageID: w.MessageID,
		Sender:    sender,
		Chain:     chain,
		Text:      chain.PlainText(),
	}, nil
}
