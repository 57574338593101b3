// Package capabilities implements the grant/request/revoke action dispatch
// for network capability tokens.
package capabilities

import (
	"sort"
	"strings"
)

const (
	requestPrefix = "request_permission:"
	grantPrefix   = "grant_permission:"
	revokePrefix  = "revoke_permission:"
	clearPending  = "clear_pending"
)

// Set holds the granted/pending capability sets for one session, mirroring
// spectator.SessionState's CapabilityGranted/CapabilityPending fields.
type Set struct {
	Granted []string
	Pending []string
}

// ApplyResult records what an action batch actually did, for the `actions`
// trace event's {before, after, applied, ignored} shape.
type ApplyResult struct {
	Before  Set
	After   Set
	Applied []string
	Ignored []string
}

// Apply runs each action string against the set in order and normalizes so
// granted ∩ pending = ∅ holds on exit.
func Apply(s Set, actions []string) ApplyResult {
	before := Set{Granted: append([]string{}, s.Granted...), Pending: append([]string{}, s.Pending...)}

	granted := toSet(s.Granted)
	pending := toSet(s.Pending)
	var applied, ignored []string

	for _, action := range actions {
		switch {
		case strings.HasPrefix(action, requestPrefix):
			cap := strings.TrimPrefix(action, requestPrefix)
			if _, isGranted := granted[cap]; isGranted {
				ignored = append(ignored, action)
				continue
			}
			if _, isPending := pending[cap]; isPending {
				ignored = append(ignored, action)
				continue
			}
			pending[cap] = struct{}{}
			applied = append(applied, action)
		case strings.HasPrefix(action, grantPrefix):
			cap := strings.TrimPrefix(action, grantPrefix)
			_, already := granted[cap]
			granted[cap] = struct{}{}
			delete(pending, cap)
			if already {
				ignored = append(ignored, action)
			} else {
				applied = append(applied, action)
			}
		case strings.HasPrefix(action, revokePrefix):
			cap := strings.TrimPrefix(action, revokePrefix)
			if _, ok := granted[cap]; !ok {
				ignored = append(ignored, action)
				continue
			}
			delete(granted, cap)
			applied = append(applied, action)
		case action == clearPending:
			if len(pending) == 0 {
				ignored = append(ignored, action)
				continue
			}
			pending = map[string]struct{}{}
			applied = append(applied, action)
		default:
			ignored = append(ignored, action)
		}
	}

	// Normalize the disjointness invariant regardless of the action sequence
	// above: a capability can never end the batch in both sets.
	for cap := range granted {
		delete(pending, cap)
	}

	after := Set{Granted: fromSet(granted), Pending: fromSet(pending)}
	return ApplyResult{Before: before, After: after, Applied: applied, Ignored: ignored}
}

// Allows implements the net capability predicate: domain D
// is allowed iff "net:D" is granted, or "net" is granted and (allowlist is
// empty or D is in it).
func Allows(granted []string, domain string, allowlist []string) bool {
	g := toSet(granted)
	if _, ok := g["net:"+domain]; ok {
		return true
	}
	if _, ok := g["net"]; !ok {
		return false
	}
	if len(allowlist) == 0 {
		return true
	}
	for _, d := range allowlist {
		if d == domain {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

func fromSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
