package relay

import (
	"testing"

	nostr "github.com/nbd-wtf/go-nostr"
)

func TestNormalizeFilterLeavesShortIDsAndAuthorsUnpadded(t *testing.T) {
	f := nostr.Filter{IDs: []string{"abcd"}, Authors: []string{"dead"}}
	normalizeFilter(&f)

	if f.IDs[0] != "abcd" {
		t.Fatalf("expected short id prefix to be left unpadded, got %q", f.IDs[0])
	}
	if f.Authors[0] != "dead" {
		t.Fatalf("expected short author prefix to be left unpadded, got %q", f.Authors[0])
	}
}

func TestNormalizeFilterCapsLimit(t *testing.T) {
	f := nostr.Filter{Limit: 10000}
	normalizeFilter(&f)
	if f.Limit != 500 {
		t.Fatalf("expected limit to be capped at 500, got %d", f.Limit)
	}

	f = nostr.Filter{Limit: 0}
	normalizeFilter(&f)
	if f.Limit != 500 {
		t.Fatalf("expected a non-positive limit to default to 500, got %d", f.Limit)
	}
}

func TestNormalizeFilterTrimsSearch(t *testing.T) {
	f := nostr.Filter{Search: "  hello  "}
	normalizeFilter(&f)
	if f.Search != "hello" {
		t.Fatalf("expected search term to be trimmed, got %q", f.Search)
	}
}

func TestValidateFilterRejectsEmptyFilter(t *testing.T) {
	if err := ValidateFilter(nostr.Filter{}); err == nil {
		t.Fatal("expected an empty filter with no conditions to be rejected")
	}
}

func TestValidateFilterRejectsInvertedTimeRange(t *testing.T) {
	since := nostr.Timestamp(200)
	until := nostr.Timestamp(100)
	f := nostr.Filter{Kinds: []int{1}, Since: &since, Until: &until}
	if err := ValidateFilter(f); err == nil {
		t.Fatal("expected since-after-until to be rejected")
	}
}

func TestValidateFilterAcceptsValidKindFilter(t *testing.T) {
	f := nostr.Filter{Kinds: []int{1, 3}}
	if err := ValidateFilter(f); err != nil {
		t.Fatalf("expected valid filter to pass, got: %v", err)
	}
}

func TestValidateFilterRejectsTooManyTagFilters(t *testing.T) {
	f := nostr.Filter{Kinds: []int{1}, Tags: map[string][]string{}}
	for i := 0; i < 11; i++ {
		f.Tags[string(rune('a'+i))] = []string{"x"}
	}
	if err := ValidateFilter(f); err == nil {
		t.Fatal("expected more than 10 tag filters to be rejected")
	}
}
