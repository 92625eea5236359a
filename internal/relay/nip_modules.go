package relay

import (
	"github.com/Shugur-Network/relay/internal/relay/nips"
	"github.com/Shugur-Network/relay/internal/relay/registry"
	nostr "github.com/nbd-wtf/go-nostr"
)

// buildNIPRegistry wires every per-kind nips.Validate* function into the
// module registry as a kind-scoped policy, replacing the monolithic
// per-kind switch with data the registry can fold over. Each module's
// Policies slice has exactly one entry: the existing validator, adapted
// to the Policy signature and reporting "invalid: <detail>" on failure.
// Kind sets mirror validateWithDedicatedNIPs' former switch cases exactly.
func buildNIPRegistry() *registry.Registry {
	r := registry.New()

	wrap := func(id string, specNumbers []int, kinds []int, validate func(*nostr.Event) error) *registry.Module {
		kindSet := make(map[int]bool, len(kinds))
		for _, k := range kinds {
			kindSet[k] = true
		}
		return &registry.Module{
			ID:          id,
			SpecNumbers: specNumbers,
			Kinds:       kindSet,
			Policies: []registry.Policy{
				func(ctx *registry.EvalContext) registry.Decision {
					if err := validate(ctx.Event); err != nil {
						return registry.RejectDecision("invalid: " + err.Error())
					}
					return registry.AcceptDecision
				},
			},
			Capabilities: registry.CapabilityFragment{SpecNumbers: specNumbers},
		}
	}

	r.Register(wrap("follow-list", []int{2}, []int{3}, nips.ValidateFollowList))
	r.Register(wrap("encrypted-dm", []int{4}, []int{4}, nips.ValidateEncryptedDirectMessage))
	r.Register(wrap("deletion", []int{9}, []int{5}, nips.ValidateEventDeletion))
	r.Register(wrap("reaction", []int{25}, []int{7}, nips.ValidateReaction))
	r.Register(wrap("private-dm", []int{17}, []int{14, 15, 10050}, nips.ValidatePrivateDirectMessage))
	r.Register(wrap("ots-attestation", []int{3}, []int{1040}, nips.ValidateOpenTimestampsAttestation))
	r.Register(wrap("report", []int{56}, []int{1984}, nips.ValidateReport))
	r.Register(wrap("command-result", []int{20}, []int{24133}, nips.ValidateCommandResult))
	r.Register(wrap("long-form", []int{23}, []int{30023}, nips.ValidateLongFormContent))
	r.Register(wrap("app-specific-data", []int{78}, []int{30078}, nips.ValidateApplicationSpecificData))
	r.Register(wrap("gift-wrap-13194", []int{59}, []int{13194}, nips.ValidateGiftWrapEvent))
	r.Register(wrap("relay-list", []int{65}, []int{10002}, func(e *nostr.Event) error { return nips.ValidateKind10002(*e) }))
	r.Register(wrap("gift-wrap-1059", []int{59}, []int{1059}, nips.ValidateGiftWrapEvent))
	r.Register(wrap("comment", []int{22}, []int{1111}, nips.ValidateComment))
	r.Register(wrap("vanish-request", []int{62}, []int{62}, nips.ValidateVanishEvent))
	r.Register(fallbackKindModule())

	return r
}

// buildCoreRegistry wires the built-in, auth-context-dependent policies of
// §4.2 that validateWithDedicatedNIPs cannot evaluate (it never sees the
// submitting connection's authenticated pubkey): the auth-kind shadow rule
// and the protected-event ("-" tag) rule. Evaluated from the connection
// layer, where the authenticated pubkey is known.
func buildCoreRegistry() *registry.Registry {
	r := registry.New()
	r.Register(shadowAuthModule())
	r.Register(protectedEventModule())
	return r
}

// shadowAuthModule implements the built-in "auth-kind shadow" policy of
// §4.2: kind-22242 events are never stored or broadcast, but the
// submitter still receives an affirmative OK.
func shadowAuthModule() *registry.Module {
	return &registry.Module{
		ID:          "core-auth-shadow",
		SpecNumbers: []int{42},
		Kinds:       map[int]bool{22242: true},
		Policies: []registry.Policy{
			func(ctx *registry.EvalContext) registry.Decision {
				return registry.ShadowDecision
			},
		},
		Capabilities: registry.CapabilityFragment{SpecNumbers: []int{42}},
	}
}

// protectedEventModule implements the "-" tag (NIP-70) protected event
// rule: the submitting *connection* must already be authenticated as the
// event's pubkey, not merely claim to be that pubkey in the event itself.
func protectedEventModule() *registry.Module {
	return &registry.Module{
		ID:          "core-protected-event",
		SpecNumbers: []int{70},
		Policies: []registry.Policy{
			func(ctx *registry.EvalContext) registry.Decision {
				if !nips.IsProtectedEvent(ctx.Event) {
					return registry.AcceptDecision
				}
				if ctx.AuthedPubkey == "" || ctx.AuthedPubkey != ctx.Event.PubKey {
					return registry.RejectDecision("auth-required: protected event")
				}
				return registry.AcceptDecision
			},
		},
		Capabilities: registry.CapabilityFragment{SpecNumbers: []int{70}},
	}
}

// fallbackKindModule reproduces validateWithDedicatedNIPs' former default
// case: ephemeral-range treatment, addressable-kind structural checks, and
// extra-metadata checks, for any kind not claimed by a more specific
// module above.
func fallbackKindModule() *registry.Module {
	return &registry.Module{
		ID:          "core-fallback",
		SpecNumbers: []int{16, 24, 33},
		Capabilities: registry.CapabilityFragment{SpecNumbers: []int{16, 24, 33}},
		Policies: []registry.Policy{
			func(ctx *registry.EvalContext) registry.Decision {
				evt := ctx.Event
				if evt.Kind >= 20000 && evt.Kind < 30000 {
					if err := nips.ValidateEventTreatment(evt); err != nil {
						return registry.RejectDecision("invalid: " + err.Error())
					}
					return registry.AcceptDecision
				}
				if nips.IsParameterizedReplaceableKind(evt.Kind) {
					if err := nips.ValidateParameterizedReplaceableEvent(evt); err != nil {
						return registry.RejectDecision("invalid: " + err.Error())
					}
					return registry.AcceptDecision
				}
				if nips.HasExtraMetadata(evt) {
					if err := nips.ValidateExtraMetadata(evt); err != nil {
						return registry.RejectDecision("invalid: " + err.Error())
					}
				}
				return registry.AcceptDecision
			},
		},
	}
}
