package relay

import (
	"strings"
	"testing"

	"github.com/Shugur-Network/relay/internal/config"
	"github.com/Shugur-Network/relay/internal/relay/registry"
	nostr "github.com/nbd-wtf/go-nostr"
)

func TestNIPRegistryRoutesByKind(t *testing.T) {
	r := buildNIPRegistry()

	evt := &nostr.Event{
		Kind: 3,
		Tags: nostr.Tags{{"p", "not-a-valid-pubkey"}},
	}
	decision := r.Evaluate(&registry.EvalContext{Event: evt})
	if decision.Outcome != registry.Reject {
		t.Fatalf("expected a kind-3 event with an invalid p-tag pubkey to be rejected, got %v", decision.Outcome)
	}
	if !strings.HasPrefix(decision.Reason, "invalid:") {
		t.Fatalf("expected the reject reason to carry the invalid: taxonomy prefix, got %q", decision.Reason)
	}
}

func TestNIPRegistryIgnoresUnrelatedKinds(t *testing.T) {
	r := buildNIPRegistry()

	evt := &nostr.Event{Kind: 1, Content: "just a plain note"}
	decision := r.Evaluate(&registry.EvalContext{Event: evt})
	if decision.Outcome != registry.Accept {
		t.Fatalf("expected a kind with no dedicated module to pass through, got %v: %s", decision.Outcome, decision.Reason)
	}
}

func TestPluginValidatorSupportedSpecNumbersAggregatesBothRegistries(t *testing.T) {
	pv := NewPluginValidator(&config.Config{}, nil)

	numbers := pv.SupportedSpecNumbers()

	seen := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		if seen[n] {
			t.Fatalf("expected no duplicate spec numbers, got a repeat of %d in %v", n, numbers)
		}
		seen[n] = true
	}

	// 22 (comment) lives in nipRegistry; 42 (auth shadow) and 70 (protected
	// event) live in coreRegistry — all three must appear in the union.
	for _, want := range []int{22, 42, 70} {
		if !seen[want] {
			t.Fatalf("expected aggregated spec numbers %v to include %d", numbers, want)
		}
	}
}
