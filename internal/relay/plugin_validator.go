package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Shugur-Network/relay/internal/config"
	"github.com/Shugur-Network/relay/internal/domain"
	"github.com/Shugur-Network/relay/internal/logger"
	"github.com/Shugur-Network/relay/internal/metrics"
	"github.com/Shugur-Network/relay/internal/relay/nips"
	"github.com/Shugur-Network/relay/internal/relay/registry"
	"github.com/Shugur-Network/relay/internal/storage"
	nostr "github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"
)

// ValidationLimits defines your limit fields
type ValidationLimits struct {
	MaxContentLength  int
	MaxTagsLength     int
	MaxTagsPerEvent   int
	MaxTagElements    int
	MaxFutureSeconds  int
	OldestEventTime   int64
	RelayStartupTime  time.Time
	MaxMetadataLength int
	AllowedKinds      map[int]bool
	RequiredTags      map[int][]string
	MaxCreatedAt      int64
	MinCreatedAt      int64
}

// PluginValidator implements EventValidator
type PluginValidator struct {
	config    *config.Config
	blacklist map[string]bool
	mu        sync.RWMutex // protects blacklist and limits.AllowedKinds
	limits    ValidationLimits

	verifiedPubkeys map[string]time.Time
	db              *storage.DB

	// nipRegistry holds the composable per-kind content policies (§4.2);
	// coreRegistry holds the built-ins that need the connection's
	// authenticated pubkey (shadow, protected-event) and is evaluated from
	// the connection layer via EvaluateCorePolicies.
	nipRegistry  *registry.Registry
	coreRegistry *registry.Registry
}

// Registry exposes the per-kind module registry for capability aggregation
// (information document) and for tests.
func (pv *PluginValidator) Registry() *registry.Registry {
	return pv.nipRegistry
}

// EvaluateCorePolicies runs the auth-context-dependent built-in policies
// (auth-kind shadow, protected event) against event for a connection
// authenticated as authedPubkey (empty if unauthenticated).
func (pv *PluginValidator) EvaluateCorePolicies(event *nostr.Event, authedPubkey string) registry.Decision {
	return pv.coreRegistry.Evaluate(&registry.EvalContext{Event: event, AuthedPubkey: authedPubkey})
}

// SupportedSpecNumbers returns the spec numbers aggregated across every
// active module in both the per-kind content registry and the core,
// auth-context-dependent registry, satisfying §4.10's "aggregated from
// active modules" requirement for the information document.
func (pv *PluginValidator) SupportedSpecNumbers() []int {
	seen := make(map[int]bool)
	var out []int
	for _, frag := range []registry.CapabilityFragment{
		pv.nipRegistry.AggregateCapabilities(),
		pv.coreRegistry.AggregateCapabilities(),
	} {
		for _, n := range frag.SpecNumbers {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// Ensure PluginValidator implements domain.EventValidator
var _ domain.EventValidator = (*PluginValidator)(nil)

// NewPluginValidator returns a PluginValidator with default settings
func NewPluginValidator(cfg *config.Config, database *storage.DB) *PluginValidator {
	// Use configuration values for content length limits
	maxContentLength := cfg.Relay.ThrottlingConfig.MaxContentLen
	if maxContentLength == 0 {
		maxContentLength = 64000 // fallback default
	}

	defaultLimits := ValidationLimits{
		MaxContentLength:  maxContentLength, // Use configured value
		MaxTagsLength:     10000,
		MaxTagsPerEvent:   256,
		MaxTagElements:    16,
		MaxFutureSeconds:  300,
		OldestEventTime:   1609459200, // Jan 1, 2021
		RelayStartupTime:  time.Now(),
		MaxMetadataLength: 10000,
		AllowedKinds: map[int]bool{
			0: true, 1: true, 2: true, 3: true, 4: true, 5: true,
			6: true, 7: true, 9: true, 11: true, 16: true, 20: true, 21: true, 24: true,
			62: true,
			14: true, 15: true, 1059: true, 10050: true,
			1984: true, 1985: true, 9734: true, 9735: true, 10002: true,
			30023: true, 30024: true, // NIP-23: Long-form Content + Drafts
			31989: true, 31990: true, // NIP-89: App Handlers
			1111: true, // NIP-22: Comment
			// NIP-C7 Chats (kind 9), NIP-7D Threads (kind 11), NIP-A4 Public Messages (kind 24)
			// NIP-68 Picture-first (kind 20), NIP-71 Video (kind 21), NIP-62 Vanish (kind 62)
			// NIP-32 Labeling (kind 1985)
			// NIP-20 Command Results
			24133: true,
			// NIP-16 Ephemeral Events (20000-29999) â€” range-allowed in validator
			// NIP-33 Addressable Events
			30000: true, 30001: true, 30002: true, 30003: true,
			// Other NIPs
			1040:  true, // NIP-03 OpenTimestamps attestation
			1063:  true, // NIP-94: File Metadata
			1222:  true, // NIP-A0: Voice Messages
			1244:  true, // NIP-A0: Voice Reply
			1337:  true, // NIP-C0: Code Snippets
			2003:  true, // NIP-35: Torrents
			1018:  true, // NIP-88: Polls (response)
			1068:  true, // NIP-88: Polls (poll event)
			9041:  true, // NIP-75: Zap Goals
			9802:  true, // NIP-84: Highlights
			13194: true, // NIP-47: Wallet Connect info
			30078: true, // NIP-78 Application-specific Data
			30315: true, // NIP-38: User Statuses
			30382: true, // NIP-85: Trusted Assertions
			10040: true, // NIP-85: Trusted Assertion Delegation
			30402: true, // NIP-99: Classified Listings
			30403: true, // NIP-99: Draft Classified Listing
			// NIP-34 Git Stuff
			1617:  true, // Patches
			1618:  true, // Pull Requests
			1619:  true, // Issues
			1621:  true, // Comments on Git
			1630:  true, 1631: true, 1632: true, 1633: true, // Patch status
			10317: true, // Repository state
			30617: true, // Repository
			30618: true, // Repository announcements
			// NIP-37 Draft Wraps
			31234: true, // Draft event
			10013: true, // Draft list
			// NIP-71 Video Events
			34235: true, // Video event
			34236: true, // Short-form vertical video
			// NIP-87 Ecash Mint Discoverability
			38000: true, // Mint recommendation
			38172: true, // Mint trust
			38173: true, // Mint trust revocation
			// NIP-69 P2P Order Events
			38383: true, // P2P Order
			// NIP-B0 Web Bookmarking
			39701: true, // Web Bookmark
			// NIP-B7 Blossom Server List
			10063: true, // User Blossom Server List
			// NIP-66 Relay Discovery and Liveness Monitoring
			30166: true, // Relay Discovery (addressable)
			10166: true, // Relay Monitor Announcement (replaceable)
			// NIP-39 External Identities in Profiles
			10011: true, // External Identity List (replaceable)
			// NIP-64 Chess (PGN)
			64: true, // Chess game in PGN format
		},
		RequiredTags: map[int][]string{
			5:     {"e"},      // Deletion events must have an "e" tag
			7:     {"e", "p"}, // Reaction events require "e" and "p" tags
			1059:  {"p"},      // Gift wrap events must have a "p" tag
			30000: {"d"},      // NIP-33: Addressable Events require "d" tag
			30001: {"d"},      // NIP-33: Addressable Events require "d" tag
			30002: {"d"},      // NIP-33: Addressable Events require "d" tag
			30003: {"d"},      // NIP-33: Addressable Events require "d" tag
			1040:  {"e"},      // OpenTimestamps attestation requires "e" tag
			30078: {"d"},      // NIP-78: Application-specific Data requires "d" tag
			// NIP-66 Relay Discovery
			30166: {"d"},       // Relay Discovery requires "d" tag (relay URL)
		},
		MaxCreatedAt: time.Now().Unix() + 300,    // 5 minutes in future
		MinCreatedAt: time.Now().Unix() - 172800, // 2 days in past
	}

	return &PluginValidator{
		config:          cfg,
		blacklist:       make(map[string]bool),
		limits:          defaultLimits,
		verifiedPubkeys: make(map[string]time.Time),
		db:              database,
		nipRegistry:     buildNIPRegistry(),
		coreRegistry:    buildCoreRegistry(),
	}
}

// ValidateEvent checks an event thoroughly
func (pv *PluginValidator) ValidateEvent(ctx context.Context, event nostr.Event) (bool, string) {

	// Check context cancellation at strategic points
	if ctx.Err() != nil {
		return false, "operation canceled"
	}

	// 1. Basic structure checks
	if len(event.ID) != 64 || !isHexString(event.ID) {
		return false, "invalid event ID format"
	}

	if len(event.PubKey) != 64 || !isHexString(event.PubKey) {
		return false, "invalid pubkey format"
	}

	if len(event.Sig) != 128 || !isHexString(event.Sig) {
		return false, "invalid signature format"
	}

	// 2. Check if kind is allowed
	if !pv.limits.AllowedKinds[event.Kind] {
		// Check if it's an ephemeral event (20000-29999) - these should be allowed per NIP-16
		if event.Kind >= 20000 && event.Kind < 30000 {
			// Ephemeral events are allowed but not stored
		} else if event.Kind >= 5000 && event.Kind <= 5999 {
			// NIP-90 DVM job requests
		} else if event.Kind >= 6000 && event.Kind <= 6999 {
			// NIP-90 DVM job results
		} else if event.Kind == 7000 {
			// NIP-90 DVM job feedback
		} else {
			return false, fmt.Sprintf("unsupported event kind: %d", event.Kind)
		}
	}

	// 3. Check blacklist (case-insensitive)
	pv.mu.RLock()
	banned := pv.blacklist[strings.ToLower(event.PubKey)]
	pv.mu.RUnlock()
	if banned {
		return false, "pubkey is blacklisted"
	}

	// 4. Verify event ID matches content
	computedID := event.GetID()
	if computedID != event.ID {
		return false, "event ID does not match content"
	}

	// 5. Check timestamps against the strictest of the core limits and the
	// bounds the module registries declare
	now := time.Now().Unix()
	maxFutureSeconds := pv.limits.MaxFutureSeconds
	oldestEventTime := pv.limits.OldestEventTime
	for _, frag := range []registry.CapabilityFragment{pv.nipRegistry.AggregateCapabilities(), pv.coreRegistry.AggregateCapabilities()} {
		if frag.MaxFutureSeconds > 0 && frag.MaxFutureSeconds < maxFutureSeconds {
			maxFutureSeconds = frag.MaxFutureSeconds
		}
		if frag.MaxPastSeconds > 0 && now-int64(frag.MaxPastSeconds) > oldestEventTime {
			oldestEventTime = now - int64(frag.MaxPastSeconds)
		}
	}
	maxFutureTime := now + int64(maxFutureSeconds)

	if event.CreatedAt.Time().Unix() > maxFutureTime {
		return false, fmt.Sprintf("event timestamp is too far in the future (max %d seconds)", maxFutureSeconds)
	}

	if event.CreatedAt.Time().Unix() < oldestEventTime {
		return false, "event timestamp is too old"
	}

	// 6. NIP-40: Check expiration timestamp
	if expTime, hasExpiration := nips.GetExpirationTime(event); hasExpiration {
		if time.Now().After(expTime) {
			return false, "event has expired"
		}
		// Validate expiration tag format
		if err := nips.ValidateExpirationTag(event); err != nil {
			return false, fmt.Sprintf("invalid expiration tag: %v", err)
		}
	}

	// 6b. NIP-13: Proof of Work validation
	if err := nips.ValidatePoW(event, pv.config.Relay.MinPowDifficulty); err != nil {
		return false, err.Error()
	}

	// 6. Content length check
	if len(event.Content) > pv.limits.MaxContentLength {
		return false, fmt.Sprintf("content exceeds maximum length of %d bytes", pv.limits.MaxContentLength)
	}

	// 7. Tags validation
	tagsSize := 0
	for _, tag := range event.Tags {
		if len(tag) > pv.limits.MaxTagElements {
			return false, "tag has too many elements"
		}
		for _, elem := range tag {
			tagsSize += len(elem)
		}
	}

	if tagsSize > pv.limits.MaxTagsLength {
		return false, "tags exceed maximum total size"
	}

	if len(event.Tags) > pv.limits.MaxTagsPerEvent {
		return false, "too many tags"
	}

	// 8. Kind-specific required tags
	if requiredTags, hasRequirements := pv.limits.RequiredTags[event.Kind]; hasRequirements {
		for _, requiredTag := range requiredTags {
			found := false
			for _, tag := range event.Tags {
				if len(tag) > 0 && tag[0] == requiredTag {
					found = true
					break
				}
			}
			if !found {
				if event.Kind == 30018 && requiredTag == "t" {
					return false, "product must have at least one category tag"
				}
				return false, fmt.Sprintf("missing required '%s' tag", requiredTag)
			}
		}
	}

	// Special handling for deletion events (kind 5)
	if event.Kind == 5 {
		// Validate deletion authorization
		for _, tag := range event.Tags {
			if len(tag) >= 2 && tag[0] == "e" {
				targetEvent, err := pv.db.GetEventByID(context.Background(), tag[1])
				if err == nil && targetEvent.ID != "" && targetEvent.PubKey != event.PubKey {
					logger.Warn("Unauthorized deletion attempt blocked",
						zap.String("deletion_event_id", event.ID),
						zap.String("deleter_pubkey", event.PubKey),
						zap.String("target_event_id", tag[1]),
						zap.String("target_event_pubkey", targetEvent.PubKey))
					return false, "unauthorized: only the event author can delete their events"
				}
			}
		}
	}

	// NIP-specific validation using dedicated validators
	if err := pv.validateWithDedicatedNIPs(&event); err != nil {
		return false, fmt.Sprintf("NIP validation failed: %v", err)
	}

	return true, ""
}

// validateWithDedicatedNIPs runs the kind-specific content policies
// through the module registry (§4.2/§9): the combined policy is the
// conjunction of every registered module matching event.Kind, short-
// circuiting on the first non-Accept outcome. The per-kind validators
// themselves are unchanged; only the dispatch mechanism (data-driven
// registry instead of a switch) differs.
func (pv *PluginValidator) validateWithDedicatedNIPs(event *nostr.Event) error {
	decision := pv.nipRegistry.Evaluate(&registry.EvalContext{Event: event})
	if decision.Outcome == registry.Reject {
		return fmt.Errorf("%s", strings.TrimPrefix(decision.Reason, "invalid: "))
	}
	return nil
}

// ValidateFilter ensures a filter is within safe limits
func (pv *PluginValidator) ValidateFilter(f nostr.Filter) error {
	// Apply limit cap
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 500
	}

	// Validate time range
	if f.Since != nil && f.Until != nil && f.Since.Time().Unix() > f.Until.Time().Unix() {
		return fmt.Errorf("'since' timestamp is after 'until' timestamp")
	}

	// Don't allow queries too far in the future
	now := time.Now().Unix()
	maxFutureTime := now + int64(pv.limits.MaxFutureSeconds)
	if f.Until != nil && f.Until.Time().Unix() > maxFutureTime {
		return fmt.Errorf("'until' timestamp is too far in the future")
	}

	// Check IDs format (hex prefixes of up to 64 characters)
	for _, id := range f.IDs {
		if len(id) == 0 || len(id) > 64 || !isHexString(id) {
			return fmt.Errorf("invalid event ID: %s", id)
		}
	}

	// Check authors format (hex prefixes of up to 64 characters)
	for _, author := range f.Authors {
		if len(author) == 0 || len(author) > 64 || !isHexString(author) {
			return fmt.Errorf("invalid pubkey in authors: %s", author)
		}
	}

	// Prevent excessive tag filters
	if len(f.Tags) > 10 {
		return fmt.Errorf("too many tag filters (max 10)")
	}

	// Check tag values
	for _, values := range f.Tags {
		if len(values) > 20 {
			return fmt.Errorf("too many values in tag filter (max 20)")
		}
	}

	return nil
}

// AddBlacklistedPubkey adds a pubkey to the blacklist
func (pv *PluginValidator) AddBlacklistedPubkey(pubkey string) {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	pv.blacklist[strings.ToLower(pubkey)] = true
}

// RemoveBlacklistedPubkey removes a pubkey from the blacklist
func (pv *PluginValidator) RemoveBlacklistedPubkey(pubkey string) {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	delete(pv.blacklist, strings.ToLower(pubkey))
}

// GetBlacklistedPubkeys returns a copy of all blacklisted pubkeys
func (pv *PluginValidator) GetBlacklistedPubkeys() []string {
	pv.mu.RLock()
	defer pv.mu.RUnlock()
	pubkeys := make([]string, 0, len(pv.blacklist))
	for k := range pv.blacklist {
		pubkeys = append(pubkeys, k)
	}
	return pubkeys
}

// GetAllowedKinds returns a sorted list of all allowed event kinds
func (pv *PluginValidator) GetAllowedKinds() []int {
	pv.mu.RLock()
	defer pv.mu.RUnlock()
	kinds := make([]int, 0, len(pv.limits.AllowedKinds))
	for k := range pv.limits.AllowedKinds {
		kinds = append(kinds, k)
	}
	sort.Ints(kinds)
	return kinds
}

// AddAllowedKind adds an event kind to the allowed kinds map
func (pv *PluginValidator) AddAllowedKind(kind int) {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	pv.limits.AllowedKinds[kind] = true
}

// RemoveAllowedKind removes an event kind from the allowed kinds map
func (pv *PluginValidator) RemoveAllowedKind(kind int) {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	delete(pv.limits.AllowedKinds, kind)
}

// ValidateAndProcessEvent performs validation and processing of incoming events
func (pv *PluginValidator) ValidateAndProcessEvent(ctx context.Context, event nostr.Event) (bool, string, error) {
	// Check event size using configured limit
	if len(event.Content) > pv.limits.MaxContentLength {
		return false, fmt.Sprintf("invalid: event content too large (max %d bytes)", pv.limits.MaxContentLength), nil
	}

	// Administrative deny: events banned via the management RPC (§4.8)
	// are rejected here rather than merely recorded.
	if IsBannedEvent(event.ID) {
		return false, "blocked: event is banned", nil
	}

	// Create a timeout context for database operations
	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Direct database check for duplicates with retry
	var exists bool
	var err error
	for i := 0; i < 3; i++ {
		exists, err = pv.db.EventExists(dbCtx, event.ID)
		if err == nil {
			break
		}
		if i < 2 {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		return false, "error checking event existence", fmt.Errorf("database error after retries: %w", err)
	}

	if exists {
		metrics.DuplicateEvents.Inc()
		return true, "duplicate: event already exists", nil
	}

	// Verify event ID matches content (prevents ID spoofing)
	computedID := event.GetID()
	if computedID != event.ID {
		return false, "invalid: event ID does not match content", nil
	}

	// Verify signature (important for security)
	valid, err := event.CheckSignature()
	if err != nil || !valid {
		return false, "invalid: signature verification failed", nil
	}

	// Perform base validation
	valid, reason := pv.ValidateEvent(dbCtx, event)
	if !valid {
		return false, reason, nil
	}

	// Special handling for specific event kinds
	switch event.Kind {
	case 5: // deletion
		if err := nips.ValidateDeletionAuth(
			event.Tags,
			event.PubKey,
			func(id string) (nostr.Event, bool) {
				evt, err := pv.db.GetEventByID(dbCtx, id)
				if err != nil {
					logger.Error("Error fetching event for deletion validation",
						zap.String("event_id", id),
						zap.Error(err))
					return nostr.Event{}, false
				}
				return evt, true
			},
		); err != nil {
			return false, err.Error(), nil
		}
	case 0: // Metadata
		if err := pv.validateMetadataEvent(event); err != nil {
			return false, err.Error(), nil
		}

	case 1059: // NIP-59 Gift wrap
		if err := nips.ValidateGiftWrapEvent(&event); err != nil {
			return false, fmt.Sprintf("invalid gift wrap: %s", err.Error()), nil
		}
	}

	// Check if delegation is being used (NIP-26)
	if delegationTag := nips.ExtractDelegationTag(event); delegationTag != nil {
		if err := nips.ValidateDelegation(&event, delegationTag); err != nil {
			return false, fmt.Sprintf("invalid delegation: %s", err.Error()), nil
		}
		logger.Debug("Event with valid delegation accepted",
			zap.String("event_id", event.ID),
			zap.String("delegator", delegationTag.MasterPubkey))
	}

	return true, "", nil
}

// validateMetadataEvent validates a metadata event (kind 0)
func (pv *PluginValidator) validateMetadataEvent(event nostr.Event) error {
	// Ensure content is valid JSON
	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(event.Content), &metadata); err != nil {
		return fmt.Errorf("metadata must be valid JSON: %w", err)
	}

	// Validate common metadata fields
	if name, ok := metadata["name"].(string); ok && len(name) > 100 {
		return fmt.Errorf("name field too long (max 100 characters)")
	}

	if about, ok := metadata["about"].(string); ok && len(about) > 500 {
		return fmt.Errorf("about field too long (max 500 characters)")
	}

	return nil
}
