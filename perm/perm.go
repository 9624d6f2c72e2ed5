// Package perm builds permission policies: predicates over who sent a
// message.
package perm

import "github.com/nicebartender/botgate/event"

type Check func(event.Sender) bool

// Policy allows a sender when any of its checks does. A policy without
// checks allows everyone.
type Policy struct {
	checks []Check
}

func New(checks ...Check) Policy {
	return Policy{checks: checks}
}

func Any() Policy {
	return Policy{}
}

func (p Policy) Check(s event.Sender) bool {
	if len(p.checks) == 0 {
		return true
	}
	for _, c := range p.checks {
		if c(s) {
			return true
		}
	}
	return false
}

// Or merges policies. An empty policy among them still allows everyone.
func Or(policies ...Policy) Policy {
	var checks []Check
	for _, p := range policies {
		if len(p.checks) == 0 {
			return Any()
		}
		checks = append(checks, p.checks...)
	}
	return Policy{checks: checks}
}

func Users(ids ...int64) Policy {
	set := toSet(ids)
	return New(func(s event.Sender) bool { return set[s.UserID] })
}

func Groups(ids ...int64) Policy {
	set := toSet(ids)
	return New(func(s event.Sender) bool { return s.GroupID != 0 && set[s.GroupID] })
}

// AllowList allows senders whose user id or group id is listed. With
// reverse set it becomes a deny list.
func AllowList(userIDs, groupIDs []int64, reverse bool) Policy {
	users, groups := toSet(userIDs), toSet(groupIDs)
	return New(func(s event.Sender) bool {
		in := users[s.UserID] || (s.GroupID != 0 && groups[s.GroupID])
		return in != reverse
	})
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
