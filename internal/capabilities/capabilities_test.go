package capabilities

import "testing"

func TestApplyRequestThenGrant(t *testing.T) {
	s := Set{}
	r := Apply(s, []string{"request_permission:net"})
	if len(r.After.Pending) != 1 || r.After.Pending[0] != "net" {
		t.Fatalf("expected net pending, got %v", r.After.Pending)
	}

	r2 := Apply(Set{Granted: r.After.Granted, Pending: r.After.Pending}, []string{"grant_permission:net"})
	if len(r2.After.Granted) != 1 || r2.After.Granted[0] != "net" {
		t.Fatalf("expected net granted, got %v", r2.After.Granted)
	}
	if len(r2.After.Pending) != 0 {
		t.Fatalf("expected pending cleared, got %v", r2.After.Pending)
	}
}

func TestApplyDisjointnessInvariant(t *testing.T) {
	s := Set{Pending: []string{"net"}}
	r := Apply(s, []string{"grant_permission:net"})
	for _, g := range r.After.Granted {
		for _, p := range r.After.Pending {
			if g == p {
				t.Fatalf("granted and pending overlap on %q", g)
			}
		}
	}
}

func TestApplyIdempotentGrant(t *testing.T) {
	s := Set{}
	r1 := Apply(s, []string{"grant_permission:net"})
	r2 := Apply(Set{Granted: r1.After.Granted, Pending: r1.After.Pending}, []string{"grant_permission:net"})
	if len(r2.After.Granted) != 1 {
		t.Fatalf("expected single net entry after repeated grant, got %v", r2.After.Granted)
	}
}

func TestApplyClearPending(t *testing.T) {
	s := Set{Pending: []string{"net", "net:example.com"}}
	r := Apply(s, []string{"clear_pending"})
	if len(r.After.Pending) != 0 {
		t.Fatalf("expected empty pending, got %v", r.After.Pending)
	}
}

func TestAllowsDomainSpecificGrant(t *testing.T) {
	if !Allows([]string{"net:example.com"}, "example.com", nil) {
		t.Error("expected domain-specific grant to allow")
	}
	if Allows([]string{"net:example.com"}, "other.com", nil) {
		t.Error("expected domain-specific grant to deny unrelated domain")
	}
}

func TestAllowsBlanketGrantWithAllowlist(t *testing.T) {
	if Allows([]string{"net"}, "evil.com", []string{"good.com"}) {
		t.Error("expected blanket grant restricted by allowlist to deny")
	}
	if !Allows([]string{"net"}, "good.com", []string{"good.com"}) {
		t.Error("expected blanket grant restricted by allowlist to allow listed domain")
	}
}
