package storage

import "testing"

func TestWinsPrefersHigherCreatedAt(t *testing.T) {
	if !wins(200, "zzzz", 100, "aaaa") {
		t.Fatal("expected the event with the higher created_at to win")
	}
	if wins(100, "aaaa", 200, "zzzz") {
		t.Fatal("expected the event with the lower created_at to lose")
	}
}

func TestWinsTieBreaksOnLexicallySmallerID(t *testing.T) {
	if !wins(100, "aaaa", 100, "bbbb") {
		t.Fatal("expected the lexicographically smaller id to win on a created_at tie")
	}
	if wins(100, "bbbb", 100, "aaaa") {
		t.Fatal("expected the lexicographically larger id to lose on a created_at tie")
	}
}

func TestParseAddressableRefValid(t *testing.T) {
	ref, ok := parseAddressableRef("30023:deadbeef:my-article")
	if !ok {
		t.Fatal("expected a valid kind:pubkey:d-tag reference to parse")
	}
	if ref.Kind != 30023 || ref.Pubkey != "deadbeef" || ref.DTag != "my-article" {
		t.Fatalf("unexpected parsed ref: %+v", ref)
	}
}

func TestParseAddressableRefDTagMayContainColons(t *testing.T) {
	ref, ok := parseAddressableRef("30023:deadbeef:section:sub:slug")
	if !ok {
		t.Fatal("expected parsing to succeed")
	}
	if ref.DTag != "section:sub:slug" {
		t.Fatalf("expected the d-tag to retain embedded colons, got %q", ref.DTag)
	}
}

func TestParseAddressableRefInvalid(t *testing.T) {
	cases := []string{
		"",
		"30023",
		"30023:deadbeef",
		"notanumber:deadbeef:slug",
	}
	for _, c := range cases {
		if _, ok := parseAddressableRef(c); ok {
			t.Errorf("expected parseAddressableRef(%q) to fail", c)
		}
	}
}
