package event

// SameSender matches follow-up messages from the same user in the same
// group (or the same user in private).
func SameSender(m *Message) func(*Message) bool {
	want := m.Sender
	return func(next *Message) bool {
		return next.Sender.Same(want)
	}
}

// SameContext matches any follow-up in the same conversation: the same
// group for group messages, the same private chat otherwise.
func SameContext(m *Message) func(*Message) bool {
	want := m.Position()
	return func(next *Message) bool {
		return next.Position() == want
	}
}
