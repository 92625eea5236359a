// Package registry implements the composable NIP-module validation
// pipeline: a module contributes policies, an optional pre/post-store
// hook, and an advertised capability fragment for one or more event
// kinds. The registry's combined policy is the left-fold conjunction of
// every module whose kind set matches the event's kind, short-circuiting
// on the first non-Accept outcome.
package registry

import (
	nostr "github.com/nbd-wtf/go-nostr"
)

// Outcome is the result category a Policy can return.
type Outcome int

const (
	// Accept lets the event proceed to the next policy / to storage.
	Accept Outcome = iota
	// Reject stops the chain and the event is not stored or broadcast.
	Reject
	// Shadow stops the chain, reports success to the submitter, but the
	// event is never stored or broadcast (used for auth-kind events).
	Shadow
)

// Decision is the return value of a Policy.
type Decision struct {
	Outcome Outcome
	Reason  string // set when Outcome == Reject
}

// AcceptDecision is the zero-cost Accept decision.
var AcceptDecision = Decision{Outcome: Accept}

// RejectDecision builds a Reject decision carrying reason, which should
// begin with one of the taxonomy prefixes (invalid:, duplicate:, pow:,
// blocked:, rate-limited:, auth-required:, restricted:, error:).
func RejectDecision(reason string) Decision {
	return Decision{Outcome: Reject, Reason: reason}
}

// ShadowDecision is the singleton Shadow decision.
var ShadowDecision = Decision{Outcome: Shadow}

// EvalContext carries everything a Policy needs to judge an event.
type EvalContext struct {
	Event         *nostr.Event
	AuthedPubkey  string // empty if the connection has not authenticated
	RemoteAddr    string
}

// Policy is a pure function from context to decision.
type Policy func(ctx *EvalContext) Decision

// PreStoreOutcome is the result category a PreStoreHook can return.
type PreStoreOutcome int

const (
	// StoreAsIs proceeds with a normal store() call.
	StoreAsIs PreStoreOutcome = iota
	// Replace indicates the event should replace whatever matches
	// DeleteFilter before (or as part of) being stored.
	Replace
	// RejectStore aborts the store with Reason.
	RejectStore
)

// PreStoreResult is returned by a PreStoreHook.
type PreStoreResult struct {
	Outcome      PreStoreOutcome
	DeleteFilter nostr.Filter
	Reason       string
}

// PreStoreHook runs before storage and may redirect to a replace or abort.
type PreStoreHook func(ctx *EvalContext) PreStoreResult

// PostStoreHook runs unconditionally after a successful store.
type PostStoreHook func(ctx *EvalContext)

// CapabilityFragment is the piece of the relay information document a
// module contributes: supported spec numbers and any numeric limits it
// wants to advertise or tighten.
type CapabilityFragment struct {
	SpecNumbers       []int
	MaxContentLength  int // 0 = no opinion
	MaxFutureSeconds  int // 0 = no opinion
	MaxPastSeconds    int // 0 = no opinion
	ExtraLimitations  map[string]interface{}
}

// Module is a composable, plain-data bundle of policies and hooks
// associated with a set of event kinds and one or more protocol spec
// identifiers.
type Module struct {
	ID           string
	SpecNumbers  []int
	Kinds        map[int]bool // nil/empty means "all kinds"
	Policies     []Policy
	PreStore     PreStoreHook
	PostStore    PostStoreHook
	Capabilities CapabilityFragment
}

func (m *Module) handlesKind(kind int) bool {
	if len(m.Kinds) == 0 {
		return true
	}
	return m.Kinds[kind]
}

// Registry holds an ordered set of modules.
type Registry struct {
	modules []*Module
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Register appends a module. Registration order is evaluation order for
// policies and hooks.
func (r *Registry) Register(m *Module) {
	r.modules = append(r.modules, m)
}

// Modules returns the registered modules in registration order.
func (r *Registry) Modules() []*Module {
	return r.modules
}

// Evaluate runs the combined policy chain for ctx.Event.Kind: the
// conjunction of every module's policies whose Kinds set matches the
// event's kind, in registration order, short-circuiting on the first
// non-Accept decision.
func (r *Registry) Evaluate(ctx *EvalContext) Decision {
	kind := ctx.Event.Kind
	for _, m := range r.modules {
		if !m.handlesKind(kind) {
			continue
		}
		for _, p := range m.Policies {
			d := p(ctx)
			if d.Outcome != Accept {
				return d
			}
		}
	}
	return AcceptDecision
}

// RunPreStore runs every matching module's pre-store hook in registration
// order, short-circuiting on the first Replace/RejectStore.
func (r *Registry) RunPreStore(ctx *EvalContext) PreStoreResult {
	kind := ctx.Event.Kind
	for _, m := range r.modules {
		if !m.handlesKind(kind) || m.PreStore == nil {
			continue
		}
		res := m.PreStore(ctx)
		if res.Outcome != StoreAsIs {
			return res
		}
	}
	return PreStoreResult{Outcome: StoreAsIs}
}

// RunPostStore runs every matching module's post-store hook unconditionally.
func (r *Registry) RunPostStore(ctx *EvalContext) {
	kind := ctx.Event.Kind
	for _, m := range r.modules {
		if !m.handlesKind(kind) || m.PostStore == nil {
			continue
		}
		m.PostStore(ctx)
	}
}

// AggregateCapabilities merges every module's capability fragment: spec
// numbers are unioned; numeric limits use "last module to set a non-zero
// value wins".
func (r *Registry) AggregateCapabilities() CapabilityFragment {
	var out CapabilityFragment
	out.ExtraLimitations = make(map[string]interface{})
	seen := make(map[int]bool)
	for _, m := range r.modules {
		for _, n := range m.Capabilities.SpecNumbers {
			if !seen[n] {
				seen[n] = true
				out.SpecNumbers = append(out.SpecNumbers, n)
			}
		}
		if m.Capabilities.MaxContentLength > 0 {
			out.MaxContentLength = m.Capabilities.MaxContentLength
		}
		if m.Capabilities.MaxFutureSeconds > 0 {
			out.MaxFutureSeconds = m.Capabilities.MaxFutureSeconds
		}
		if m.Capabilities.MaxPastSeconds > 0 {
			out.MaxPastSeconds = m.Capabilities.MaxPastSeconds
		}
		for k, v := range m.Capabilities.ExtraLimitations {
			out.ExtraLimitations[k] = v
		}
	}
	return out
}
