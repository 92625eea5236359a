package constants

import (
	"sort"
	"time"

	"github.com/Shugur-Network/relay/internal/config"
	"github.com/Shugur-Network/relay/internal/identity"
	nip11 "github.com/nbd-wtf/go-nostr/nip11"
)

// Database constants
const (
	DatabaseName = "shugur"
)

// Default relay metadata constants
const (
	DefaultRelayDescription = "High-performance, reliable, scalable Nostr relay for decentralized communication."
	DefaultRelayContact     = "support@shugur.com"
	DefaultRelaySoftware    = "shugur"
	DefaultRelayVersion     = "2.0.0"
	DefaultRelayIcon        = "https://avatars.githubusercontent.com/u/198367099?s=400&u=2bc76d4fe6f57a1c39ef00fd784dd0bf85d79bda&v=4"
)

// baseSupportedNIPs lists the spec numbers that describe transport- and
// engine-level behavior rather than a single per-kind content module (base
// protocol flow, auth, expiration, search, counting, management RPC, and
// generically-accepted kind families with no dedicated validator) — the
// numeric floor that DefaultRelayMetadata unions with the NIP-module
// registry's own AggregateCapabilities result (see
// PluginValidator.SupportedSpecNumbers), so the served list is never purely
// static. The list also repeats several numbers that a content-validation
// module contributes as well (2, 3, 4, 9, 17, 20, 22, 23, 25, 56, 59, 62,
// 65, ...); mergeSupportedNIPs drops those duplicates.
var baseSupportedNIPs = []interface{}{
	1,  // NIP-01: Basic protocol flow description
	2,  // NIP-02: Follow List
	3,  // NIP-03: OpenTimestamps Attestations for Events
	4,  // NIP-04: Encrypted Direct Message (deprecated, use NIP-17)
	9,  // NIP-09: Event Deletion Request
	11, // NIP-11: Relay Information Document
	17, // NIP-17: Private Direct Messages
	20, // NIP-20: Command Results
	22, // NIP-22: Comment
	23, // NIP-23: Long-form Content
	25, // NIP-25: Reactions
	30, // NIP-30: Custom Emoji
	34, // NIP-34: Git Stuff
	35, // NIP-35: Torrents
	37, // NIP-37: Draft Wraps
	38, // NIP-38: User Statuses
	44, // NIP-44: Encrypted Payloads (Versioned)
	45, // NIP-45: Counting Events
	47, // NIP-47: Nostr Wallet Connect (NWC)
	50, // NIP-50: Search Capability
	56, // NIP-56: Reporting
	59, // NIP-59: Gift Wrap
	62, // NIP-62: Request to Vanish
	65, // NIP-65: Relay List Metadata
	69, // NIP-69: Peer-to-peer Order Events
	71, // NIP-71: Video Events
	75, // NIP-75: Zap Goals
	78, // NIP-78: Application-specific data
	84, // NIP-84: Highlights
	85, // NIP-85: Trusted Assertions
	87, // NIP-87: Ecash Mint Discoverability
	88, // NIP-88: Polls
	89, // NIP-89: Recommended Application Handlers
	90, // NIP-90: Data Vending Machine
	94, // NIP-94: File Metadata
	99, // NIP-99: Classified Listings
	"7D", // NIP-7D: Threads
	"A0", // NIP-A0: Voice Messages
	"A4", // NIP-A4: Public Messages
	"B0", // NIP-B0: Web Bookmarking
	"C0", // NIP-C0: Code Snippets
	"C7", // NIP-C7: Chats
}

// mergeSupportedNIPs unions baseSupportedNIPs with the numeric spec numbers
// an active module registry reports, preserving baseSupportedNIPs' order
// and appending any module-only numbers numerically sorted at the end.
func mergeSupportedNIPs(activeSpecNumbers []int) []interface{} {
	present := make(map[int]bool, len(baseSupportedNIPs))
	for _, n := range baseSupportedNIPs {
		if i, ok := n.(int); ok {
			present[i] = true
		}
	}

	out := make([]interface{}, len(baseSupportedNIPs))
	copy(out, baseSupportedNIPs)

	var extra []int
	for _, n := range activeSpecNumbers {
		if !present[n] {
			present[n] = true
			extra = append(extra, n)
		}
	}
	sort.Ints(extra)
	for _, n := range extra {
		out = append(out, n)
	}
	return out
}

// CustomNIP represents a custom NIP implementation
type CustomNIP struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// DefaultCustomNIPs lists custom NIPs implemented by this relay. None at
// present.
var DefaultCustomNIPs = []CustomNIP{}

// Relay limitations and settings
const (
	MaxMessageLength = 2048
	MaxSubscriptions = 100
	MaxFilters       = 100
	MaxLimit         = 100
	MaxSubIDLength   = 100
	MaxEventTags     = 100
	MaxContentLength = 2048
	MinPowDifficulty = 0
	AuthRequired     = false
	PaymentRequired  = false
	RestrictedWrites = false
)

// Database operation constants
const (
	DefaultQueryPrealloc = 500           // Default query result preallocation size
	MaxDBRetries         = 3             // Maximum database connection retry attempts
	DBRetryDelay         = 1             // Database retry delay in seconds
	
	// Database connection pool constants (production-optimized)
	// Pool sizes are calculated based on expected load patterns:
	// Small scale: Up to 200 WebSocket connections
	// Medium scale: 200-2000 WebSocket connections  
	// Large scale: 2000+ WebSocket connections
	DBPoolSmallMaxConns     = 8   // For small deployments (up to 200 WS connections)
	DBPoolSmallMinConns     = 2   // Minimum idle connections for small deployments
	DBPoolMediumMaxConns    = 25  // For medium deployments (200-2000 WS connections) 
	DBPoolMediumMinConns    = 5   // Minimum idle connections for medium deployments
	DBPoolLargeMaxConns     = 50  // For large deployments (2000+ WS connections)
	DBPoolLargeMinConns     = 10  // Minimum idle connections for large deployments
)

// Duration constants
const (
	DBConnMaxLifetime    = 60 * time.Minute  // Connection max lifetime (1 hour)
	DBConnMaxIdleTime    = 15 * time.Minute  // Max idle time (15 minutes)
	DBConnAcquireTimeout = 10 * time.Second  // Timeout for acquiring connection
)

// Timeout constants (in seconds)
const (
	ClusterSettingTimeout = 10 // Timeout for cluster setting operations
	ChangefeedTestTimeout = 5  // Timeout for changefeed capability tests
	HealthCheckTimeout    = 5  // Timeout for health check operations
)

// DefaultRelayMetadata returns the default relay metadata document.
// activeSpecNumbers is the module registry's aggregated capability list
// (PluginValidator.SupportedSpecNumbers); pass nil to fall back to
// baseSupportedNIPs alone.
func DefaultRelayMetadata(cfg *config.Config, activeSpecNumbers []int) nip11.RelayInformationDocument {
	// Get or create relay identity, using configured public key if provided
	relayIdentity, err := identity.GetOrCreateRelayIdentityWithConfig(cfg.Relay.PublicKey)
	if err != nil {
		// Fallback to default if identity system fails
		relayIdentity = &identity.RelayIdentity{
			RelayID:   "relay-unknown",
			PublicKey: "unknown",
		}
	}

	// Use relay name from config, fallback to "shugur-relay" if empty
	relayName := cfg.Relay.Name
	if relayName == "" {
		relayName = "shugur-relay"
	}

	// Use relay description from config, fallback to default if empty
	relayDescription := cfg.Relay.Description
	if relayDescription == "" {
		relayDescription = DefaultRelayDescription
	}

	// Use relay contact from config, fallback to default if empty
	relayContact := cfg.Relay.Contact
	if relayContact == "" {
		relayContact = DefaultRelayContact
	}

	// Use relay icon from config, fallback to default if empty
	relayIcon := cfg.Relay.Icon
	if relayIcon == "" {
		relayIcon = DefaultRelayIcon
	}

	// Use relay banner from config if provided
	relayBanner := cfg.Relay.Banner

	// Use actual configuration values for limitations where available, fallback to constants
	maxContentLength := cfg.Relay.ThrottlingConfig.MaxContentLen
	if maxContentLength == 0 {
		maxContentLength = MaxContentLength // fallback to default constant
	}

	return nip11.RelayInformationDocument{
		Name:          relayName,
		Description:   relayDescription,
		Contact:       relayContact,
		PubKey:        relayIdentity.PublicKey,
		SupportedNIPs: mergeSupportedNIPs(activeSpecNumbers),
		Software:      DefaultRelaySoftware,
		Version:       config.Version,
		Icon:          relayIcon,
		Banner:        relayBanner,
		Limitation: &nip11.RelayLimitationDocument{
			MaxMessageLength: maxContentLength, // Use actual configured content length
			MaxSubscriptions: MaxSubscriptions, // Use constant (configurable via config if needed)
			MaxLimit:         MaxLimit,         // Use constant (configurable via config if needed)
			MaxSubidLength:   MaxSubIDLength,   // Use constant (configurable via config if needed)
			MaxEventTags:     MaxEventTags,     // Use constant (configurable via config if needed)
			MaxContentLength: maxContentLength, // Use actual configured content length
			MinPowDifficulty: MinPowDifficulty, // Use constant (configurable via config if needed)
			AuthRequired:     AuthRequired,     // Use constant (configurable via config if needed)
			PaymentRequired:  PaymentRequired,  // Use constant (configurable via config if needed)
			RestrictedWrites: RestrictedWrites, // Use constant (configurable via config if needed)
		},
	}
}
