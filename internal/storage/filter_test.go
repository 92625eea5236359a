package storage

import (
	"strings"
	"testing"

	nostr "github.com/nbd-wtf/go-nostr"
)

func TestEscapeLikePrefixEscapesMetacharacters(t *testing.T) {
	cases := map[string]string{
		"abc":     "abc",
		"a%b":     `a\%b`,
		"a_b":     `a\_b`,
		`a\b`:     `a\\b`,
		`50%_off\`: `50\%\_off\\`,
	}
	for in, want := range cases {
		if got := escapeLikePrefix(in); got != want {
			t.Errorf("escapeLikePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildQueryIDUsesLikePrefixNotExactArray(t *testing.T) {
	cf := CompileFilter(nostr.Filter{IDs: []string{"abcd"}})
	query, args, err := cf.BuildQuery()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(query, "id LIKE $1") {
		t.Fatalf("expected an id LIKE clause, got: %s", query)
	}
	if strings.Contains(query, "= ANY") {
		t.Fatalf("id filtering must not use exact array matching, got: %s", query)
	}
	if args[0] != "abcd%" {
		t.Fatalf("expected escaped prefix with wildcard suffix, got %v", args[0])
	}
}

func TestBuildQueryAuthorsUseLikePrefix(t *testing.T) {
	cf := CompileFilter(nostr.Filter{Authors: []string{"dead"}, Kinds: []int{1}})
	query, _, err := cf.BuildQuery()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(query, "pubkey LIKE $") {
		t.Fatalf("expected a pubkey LIKE clause, got: %s", query)
	}
	if strings.Contains(query, "pubkey = ANY") {
		t.Fatalf("author filtering must not use exact array matching, got: %s", query)
	}
}

func TestBuildQueryOrdersNewestFirstRegardlessOfIndex(t *testing.T) {
	filters := []nostr.Filter{
		{IDs: []string{"abcd"}},
		{Authors: []string{"dead"}, Kinds: []int{1}},
		{Kinds: []int{1}},
		{Since: ptrTS(100)},
	}
	for _, f := range filters {
		cf := CompileFilter(f)
		query, _, err := cf.BuildQuery()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(query, "ORDER BY created_at DESC, id ASC") {
			t.Fatalf("expected consistent ORDER BY regardless of index strategy, got: %s", query)
		}
	}
}

func ptrTS(v int64) *nostr.Timestamp {
	t := nostr.Timestamp(v)
	return &t
}
