package bot

import "fmt"

// Hint is an error whose text is meant for the user. Returned from a
// handler, it is sent back to the sender verbatim and not logged.
type Hint struct {
	Text string
}

func (h *Hint) Error() string { return h.Text }

func Hintf(format string, args ...any) error {
	return &Hint{Text: fmt.Sprintf(format, args...)}
}
