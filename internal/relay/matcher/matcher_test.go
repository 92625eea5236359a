package matcher

import (
	"testing"

	nostr "github.com/nbd-wtf/go-nostr"
)

func ptrTimestamp(v int64) *nostr.Timestamp {
	t := nostr.Timestamp(v)
	return &t
}

func TestMatchesIDPrefix(t *testing.T) {
	evt := &nostr.Event{ID: "abcdef0123456789"}

	if !Matches(nostr.Filter{IDs: []string{"abcd"}}, evt) {
		t.Fatal("expected prefix match to succeed")
	}
	if Matches(nostr.Filter{IDs: []string{"zzzz"}}, evt) {
		t.Fatal("expected prefix mismatch to fail")
	}
}

func TestMatchesAuthorPrefix(t *testing.T) {
	evt := &nostr.Event{PubKey: "deadbeef00112233"}

	if !Matches(nostr.Filter{Authors: []string{"dead"}}, evt) {
		t.Fatal("expected author prefix match to succeed")
	}
	if Matches(nostr.Filter{Authors: []string{"beef"}}, evt) {
		t.Fatal("author prefix must anchor at the start, not match anywhere in the string")
	}
}

func TestMatchesKindSet(t *testing.T) {
	evt := &nostr.Event{Kind: 1}

	if !Matches(nostr.Filter{Kinds: []int{0, 1, 3}}, evt) {
		t.Fatal("expected kind in set to match")
	}
	if Matches(nostr.Filter{Kinds: []int{0, 3}}, evt) {
		t.Fatal("expected kind not in set to fail")
	}
}

func TestMatchesTimeBounds(t *testing.T) {
	evt := &nostr.Event{CreatedAt: 100}

	if !Matches(nostr.Filter{Since: ptrTimestamp(100), Until: ptrTimestamp(100)}, evt) {
		t.Fatal("since/until bounds should be inclusive")
	}
	if Matches(nostr.Filter{Since: ptrTimestamp(101)}, evt) {
		t.Fatal("event older than since should not match")
	}
	if Matches(nostr.Filter{Until: ptrTimestamp(99)}, evt) {
		t.Fatal("event newer than until should not match")
	}
}

func TestMatchesTags(t *testing.T) {
	evt := &nostr.Event{Tags: nostr.Tags{{"e", "abc"}, {"p", "xyz"}}}

	if !Matches(nostr.Filter{Tags: map[string][]string{"e": {"abc"}}}, evt) {
		t.Fatal("expected tag value match to succeed")
	}
	if Matches(nostr.Filter{Tags: map[string][]string{"e": {"nope"}}}, evt) {
		t.Fatal("expected non-matching tag value to fail")
	}
	if !Matches(nostr.Filter{Tags: map[string][]string{"e": {"abc"}, "p": {"xyz"}}}, evt) {
		t.Fatal("multiple tag predicates must all be satisfied")
	}
}

func TestMatchesSearch(t *testing.T) {
	evt := &nostr.Event{Content: "Hello Nostr World"}

	if !Matches(nostr.Filter{Search: "nostr"}, evt) {
		t.Fatal("search should be case-insensitive substring match")
	}
	if Matches(nostr.Filter{Search: "bitcoin"}, evt) {
		t.Fatal("search for absent term should fail")
	}
}

func TestMatchesAny(t *testing.T) {
	evt := &nostr.Event{Kind: 7}
	filters := []nostr.Filter{
		{Kinds: []int{1}},
		{Kinds: []int{7}},
	}
	if !MatchesAny(filters, evt) {
		t.Fatal("expected at least one filter in the set to match")
	}
	if MatchesAny([]nostr.Filter{{Kinds: []int{1}}}, evt) {
		t.Fatal("expected no filter in the set to match")
	}
}

func TestMatchesEmptyFilterAcceptsAnything(t *testing.T) {
	evt := &nostr.Event{ID: "id", PubKey: "pk", Kind: 1, Content: "x"}
	if !Matches(nostr.Filter{}, evt) {
		t.Fatal("a filter with no conditions should match any event")
	}
}
