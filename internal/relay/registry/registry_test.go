package registry

import (
	"testing"

	nostr "github.com/nbd-wtf/go-nostr"
)

func acceptPolicy(ctx *EvalContext) Decision { return AcceptDecision }

func rejectPolicy(reason string) Policy {
	return func(ctx *EvalContext) Decision { return RejectDecision(reason) }
}

func TestEvaluateShortCircuitsOnFirstReject(t *testing.T) {
	var secondPolicyCalled bool

	r := New()
	r.Register(&Module{
		ID:       "first",
		Policies: []Policy{rejectPolicy("invalid: nope")},
	})
	r.Register(&Module{
		ID: "second",
		Policies: []Policy{func(ctx *EvalContext) Decision {
			secondPolicyCalled = true
			return AcceptDecision
		}},
	})

	decision := r.Evaluate(&EvalContext{Event: &nostr.Event{Kind: 1}})

	if decision.Outcome != Reject {
		t.Fatalf("expected Reject, got %v", decision.Outcome)
	}
	if decision.Reason != "invalid: nope" {
		t.Fatalf("unexpected reason: %q", decision.Reason)
	}
	if secondPolicyCalled {
		t.Fatal("evaluation must short-circuit and never reach the second module's policy")
	}
}

func TestEvaluateOnlyRunsMatchingKindModules(t *testing.T) {
	r := New()
	r.Register(&Module{
		ID:       "kind-3-only",
		Kinds:    map[int]bool{3: true},
		Policies: []Policy{rejectPolicy("invalid: should not run")},
	})

	decision := r.Evaluate(&EvalContext{Event: &nostr.Event{Kind: 1}})
	if decision.Outcome != Accept {
		t.Fatalf("module scoped to kind 3 must not affect a kind-1 event, got %v", decision.Outcome)
	}
}

func TestEvaluateEmptyKindsMatchesAllKinds(t *testing.T) {
	r := New()
	r.Register(&Module{
		ID:       "all-kinds",
		Policies: []Policy{rejectPolicy("invalid: blanket reject")},
	})

	decision := r.Evaluate(&EvalContext{Event: &nostr.Event{Kind: 42}})
	if decision.Outcome != Reject {
		t.Fatalf("a module with no Kinds set must apply to every kind, got %v", decision.Outcome)
	}
}

func TestEvaluateConjunctionRequiresAllAccept(t *testing.T) {
	r := New()
	r.Register(&Module{ID: "a", Policies: []Policy{acceptPolicy}})
	r.Register(&Module{ID: "b", Policies: []Policy{acceptPolicy}})

	decision := r.Evaluate(&EvalContext{Event: &nostr.Event{Kind: 1}})
	if decision.Outcome != Accept {
		t.Fatalf("expected Accept when every module accepts, got %v", decision.Outcome)
	}
}

func TestAggregateCapabilitiesUnionsSpecNumbersAndMergesLimits(t *testing.T) {
	r := New()
	r.Register(&Module{
		ID: "a",
		Capabilities: CapabilityFragment{
			SpecNumbers:      []int{1, 9},
			MaxContentLength: 1000,
		},
	})
	r.Register(&Module{
		ID: "b",
		Capabilities: CapabilityFragment{
			SpecNumbers:      []int{9, 42},
			MaxContentLength: 2000,
			ExtraLimitations: map[string]interface{}{"payment_required": false},
		},
	})

	caps := r.AggregateCapabilities()

	if len(caps.SpecNumbers) != 3 {
		t.Fatalf("expected spec numbers deduplicated to 3 entries, got %v", caps.SpecNumbers)
	}
	if caps.MaxContentLength != 2000 {
		t.Fatalf("expected later non-zero value to win, got %d", caps.MaxContentLength)
	}
	if caps.ExtraLimitations["payment_required"] != false {
		t.Fatal("expected extra limitations to be merged in")
	}
}

func TestRunPreStoreShortCircuitsOnReplace(t *testing.T) {
	r := New()
	r.Register(&Module{
		ID: "replaceable",
		PreStore: func(ctx *EvalContext) PreStoreResult {
			return PreStoreResult{Outcome: Replace, DeleteFilter: nostr.Filter{Kinds: []int{0}}}
		},
	})

	result := r.RunPreStore(&EvalContext{Event: &nostr.Event{Kind: 0}})
	if result.Outcome != Replace {
		t.Fatalf("expected Replace outcome, got %v", result.Outcome)
	}
}

func TestRunPostStoreRunsEveryMatchingHook(t *testing.T) {
	calls := 0
	r := New()
	r.Register(&Module{ID: "a", PostStore: func(ctx *EvalContext) { calls++ }})
	r.Register(&Module{ID: "b", PostStore: func(ctx *EvalContext) { calls++ }})

	r.RunPostStore(&EvalContext{Event: &nostr.Event{Kind: 1}})
	if calls != 2 {
		t.Fatalf("expected both post-store hooks to run, got %d calls", calls)
	}
}
