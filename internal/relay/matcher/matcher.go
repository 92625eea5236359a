// Package matcher provides the single canonical predicate for deciding
// whether a stored or incoming event satisfies a subscription filter. The
// storage layer's GetEvents (on the rows its SQL query returns) and the live
// broadcast dispatcher both delegate to Matches so that a re-query under the same filter always
// reproduces what was (or would be) delivered live.
package matcher

import (
	"strings"

	nostr "github.com/nbd-wtf/go-nostr"
)

// Matches reports whether event satisfies filter per the wire-protocol
// filter semantics: ids/authors are hex-prefix matches, kinds are exact-set
// membership, since/until are inclusive bounds, tag predicates require at
// least one matching indexed tag, and search is a case-insensitive
// substring match against content.
func Matches(filter nostr.Filter, event *nostr.Event) bool {
	if len(filter.IDs) > 0 && !matchesPrefixSet(filter.IDs, event.ID) {
		return false
	}
	if len(filter.Authors) > 0 && !matchesPrefixSet(filter.Authors, event.PubKey) {
		return false
	}
	if len(filter.Kinds) > 0 && !containsInt(filter.Kinds, event.Kind) {
		return false
	}
	if filter.Since != nil && event.CreatedAt < *filter.Since {
		return false
	}
	if filter.Until != nil && event.CreatedAt > *filter.Until {
		return false
	}
	for tagName, tagValues := range filter.Tags {
		if len(tagValues) == 0 {
			continue
		}
		if !eventHasTagValue(event, tagName, tagValues) {
			return false
		}
	}
	if filter.Search != "" && !strings.Contains(strings.ToLower(event.Content), strings.ToLower(filter.Search)) {
		return false
	}
	return true
}

// MatchesAny reports whether event satisfies at least one of the filters —
// the disjunctive semantics across filters within a single subscription.
func MatchesAny(filters []nostr.Filter, event *nostr.Event) bool {
	for _, f := range filters {
		if Matches(f, event) {
			return true
		}
	}
	return false
}

func matchesPrefixSet(prefixes []string, value string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(value, p) {
			return true
		}
	}
	return false
}

func containsInt(set []int, v int) bool {
	for _, k := range set {
		if k == v {
			return true
		}
	}
	return false
}

func eventHasTagValue(event *nostr.Event, tagName string, values []string) bool {
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == tagName {
			for _, v := range values {
				if tag[1] == v {
					return true
				}
			}
		}
	}
	return false
}
