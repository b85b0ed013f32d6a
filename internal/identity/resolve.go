package identity

import (
	"context"

	"go.uber.org/zap"
)

// AccountFilter selects linked accounts by provider and provider account id sets.
type AccountFilter struct {
	Providers          []AuthMethod
	ProviderAccountIDs []string
}

// Lookup is the read-only contract the resolver consumes. Implementations
// own their concurrency and retry behavior; the resolver never retries.
type Lookup interface {
	// GetUserWithAccounts returns the user and its linked accounts in
	// creation order, or ErrUserNotFound.
	GetUserWithAccounts(ctx context.Context, internalID string) (User, error)
	// FindAccounts returns every linked account matching the filter, in
	// unspecified order.
	FindAccounts(ctx context.Context, filter AccountFilter) ([]LinkedAccount, error)
}

// BatchEntry addresses one identity to reverse-resolve.
type BatchEntry struct {
	ExternalID string
	AuthMethod AuthMethod
}

// Resolution is one positional outcome of a batch resolve. When Resolved is
// false InternalID still carries the caller-supplied external id as a
// best-effort placeholder; callers must check Resolved (or the diagnostics
// list) before trusting it.
type Resolution struct {
	InternalID string
	Resolved   bool
}

// DiagnosticReason tags why a batch position could not be resolved.
type DiagnosticReason string

const (
	// ReasonEmptyBatch marks a resolve call with no entries at all.
	ReasonEmptyBatch DiagnosticReason = "empty_batch"
	// ReasonIndexOutOfRange marks an index outside the entry sequence.
	ReasonIndexOutOfRange DiagnosticReason = "index_out_of_range"
	// ReasonMissingFields marks an entry lacking its external id or auth method.
	ReasonMissingFields DiagnosticReason = "missing_fields"
	// ReasonUnresolvedMapping marks a well-formed entry with no matching
	// linked account in the store.
	ReasonUnresolvedMapping DiagnosticReason = "unresolved_mapping"
)

// Diagnostic records one unresolved batch position with enough context to
// reconstruct the failing entry. A non-empty diagnostics list signals the
// caller to re-validate the affected identities rather than trust the
// positional placeholder.
type Diagnostic struct {
	Index      int              `json:"index"`
	Reason     DiagnosticReason `json:"reason"`
	AuthMethod AuthMethod       `json:"auth_method,omitempty"`
	ExternalID string           `json:"external_id,omitempty"`
}

// BatchResult pairs positional resolutions with the diagnostics accumulated
// while producing them. Resolutions always has the same length and order as
// the input entries.
type BatchResult struct {
	Resolutions []Resolution
	Diagnostics []Diagnostic
}

// IDs flattens the resolutions into the plain positional identifier sequence.
func (r BatchResult) IDs() []string {
	ids := make([]string, 0, len(r.Resolutions))
	for _, resolution := range r.Resolutions {
		ids = append(ids, resolution.InternalID)
	}
	return ids
}

// Diagnose classifies a batch position. The reason is determined up front
// from the entry sequence alone, so every failure mode carries a distinct
// tag instead of falling through a chain of unmatched-case guards.
func Diagnose(entries []BatchEntry, index int) Diagnostic {
	if len(entries) == 0 {
		return Diagnostic{Index: index, Reason: ReasonEmptyBatch}
	}
	if index < 0 || index >= len(entries) {
		return Diagnostic{Index: index, Reason: ReasonIndexOutOfRange}
	}

	entry := entries[index]
	diagnostic := Diagnostic{
		Index:      index,
		Reason:     ReasonUnresolvedMapping,
		AuthMethod: entry.AuthMethod,
		ExternalID: entry.ExternalID,
	}
	if entry.ExternalID == "" || entry.AuthMethod == "" {
		diagnostic.Reason = ReasonMissingFields
	}
	return diagnostic
}

// ResolveBatch maps each entry back to an internal user identifier,
// positionally aligned with the input. Local entries resolve in place since
// their external id already is the internal id. All non-local entries are
// collapsed into a single FindAccounts call; a batch with no non-local
// entries issues no lookup at all. A lookup failure aborts the whole batch
// and the error is returned as the lookup produced it.
func (s *Service) ResolveBatch(ctx context.Context, entries []BatchEntry) (BatchResult, error) {
	if s.lookup == nil {
		s.logError(opResolveBatch, "missing_lookup", errMissingLookup)
		return BatchResult{}, newServiceError(opResolveBatch, "missing_lookup", errMissingLookup)
	}

	result := BatchResult{
		Resolutions: make([]Resolution, len(entries)),
		Diagnostics: []Diagnostic{},
	}
	if len(entries) == 0 {
		result.Diagnostics = append(result.Diagnostics, Diagnose(entries, 0))
		return result, nil
	}

	// Optimistic pass: assume every external id is already internal, which
	// holds for local entries. Non-local positions keep this placeholder
	// unless the lookup produces a match.
	pending := make([]int, 0, len(entries))
	for idx, entry := range entries {
		result.Resolutions[idx] = Resolution{InternalID: entry.ExternalID, Resolved: entry.AuthMethod.IsLocal()}
		if entry.AuthMethod.IsLocal() {
			continue
		}
		if diagnostic := Diagnose(entries, idx); diagnostic.Reason == ReasonMissingFields {
			result.Diagnostics = append(result.Diagnostics, diagnostic)
			s.logUnresolved(diagnostic)
			continue
		}
		pending = append(pending, idx)
	}

	if len(pending) == 0 {
		return result, nil
	}

	filter := AccountFilter{}
	providerSeen := map[AuthMethod]bool{}
	accountIDSeen := map[string]bool{}
	for _, idx := range pending {
		entry := entries[idx]
		if !providerSeen[entry.AuthMethod] {
			providerSeen[entry.AuthMethod] = true
			filter.Providers = append(filter.Providers, entry.AuthMethod)
		}
		if !accountIDSeen[entry.ExternalID] {
			accountIDSeen[entry.ExternalID] = true
			filter.ProviderAccountIDs = append(filter.ProviderAccountIDs, entry.ExternalID)
		}
	}

	accounts, err := s.lookup.FindAccounts(ctx, filter)
	if err != nil {
		s.logError(opResolveBatch, "lookup_failed", err)
		return BatchResult{}, err
	}

	for _, idx := range pending {
		entry := entries[idx]
		matched := false
		for _, account := range accounts {
			if account.Provider == entry.AuthMethod && account.ProviderAccountID == entry.ExternalID {
				result.Resolutions[idx] = Resolution{InternalID: account.UserID, Resolved: true}
				matched = true
				break
			}
		}
		if !matched {
			diagnostic := Diagnose(entries, idx)
			result.Diagnostics = append(result.Diagnostics, diagnostic)
			s.logUnresolved(diagnostic)
		}
	}

	return result, nil
}

func (s *Service) logUnresolved(diagnostic Diagnostic) {
	s.loggerOrDefault().Warn("identity batch position unresolved",
		zap.Int("index", diagnostic.Index),
		zap.String("reason", string(diagnostic.Reason)),
		zap.String("auth_method", diagnostic.AuthMethod.String()),
		zap.String("external_id", diagnostic.ExternalID))
}
