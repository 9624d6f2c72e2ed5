// Package command holds the command registry primitives: the set of
// claimed canonical names, per-bot alias tables and command-start markers.
package command

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicateCommand = errors.New("command already registered")
	ErrAliasConflict    = errors.New("alias conflict")
	ErrEmptyAlias       = errors.New("empty alias")
)

// Names is the set of claimed canonical command names. Bots sharing one
// Names cannot register the same canonical name twice.
type Names struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewNames() *Names {
	return &Names{owners: make(map[string]string)}
}

// Owner returns the bot that claimed name.
func (n *Names) Owner(name string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	owner, ok := n.owners[name]
	return owner, ok
}

func (n *Names) Claim(name, owner string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if prev, ok := n.owners[name]; ok {
		return fmt.Errorf("%w: %q (bot %s)", ErrDuplicateCommand, name, prev)
	}
	n.owners[name] = owner
	return nil
}

func (n *Names) Release(name, owner string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.owners[name] == owner {
		delete(n.owners, name)
	}
}
