package memory

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ConflictParams are the thresholds the resolution state machine uses.
type ConflictParams struct {
	RefinementConfidenceBump  float64
	AutoSupersessionDelta     float64
}

// DefaultConflictParams mirrors the spec's literal defaults.
func DefaultConflictParams() ConflictParams {
	return ConflictParams{
		RefinementConfidenceBump: 0.05,
		AutoSupersessionDelta:    0.15,
	}
}

// ConflictResolution names which branch of the state machine fired.
type ConflictResolution string

const (
	ResolutionInsert          ConflictResolution = "insert"
	ResolutionRefinement      ConflictResolution = "refinement"
	ResolutionSupersession    ConflictResolution = "supersession"
	ResolutionAutoSupersession ConflictResolution = "auto_supersession"
	ResolutionFlagged         ConflictResolution = "flagged"
)

// Resolver applies the conflict-resolution state machine to newly
// extracted facts against the active facts sharing their conflict key.
type Resolver struct {
	store  Store
	params ConflictParams
	inbox  *ReviewInbox
	logger *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, params ConflictParams, inbox *ReviewInbox, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, params: params, inbox: inbox, logger: logger.With(zap.String("component", "conflict_resolver"))}
}

// Resolve decides and applies one extracted fact's fate against the
// store, returning which branch fired.
func (r *Resolver) Resolve(ctx context.Context, extracted ExtractedFact, sourceEpisodeID string) (ConflictResolution, error) {
	actives, err := r.store.ActiveFactsBySubjectPredicate(ctx, extracted.Subject, extracted.Predicate)
	if err != nil {
		return "", err
	}

	if len(actives) == 0 {
		return ResolutionInsert, r.insert(ctx, extracted, sourceEpisodeID)
	}

	// Only the first active fact sharing the conflict key is compared
	// against. Refinement and supersession leave a single active holder
	// of the key; a flagged conflict leaves both the old and the new fact
	// active, and later candidates are then compared against whichever
	// of them the store returns first.
	old := actives[0]

	if objectsCompatible(old.Object, extracted.Object) {
		return ResolutionRefinement, r.refine(ctx, old, extracted, sourceEpisodeID)
	}

	if extracted.Kind == FactKindDecision {
		return ResolutionSupersession, r.supersede(ctx, old, extracted, sourceEpisodeID)
	}

	if extracted.Confidence > old.Confidence+r.params.AutoSupersessionDelta {
		return ResolutionAutoSupersession, r.supersede(ctx, old, extracted, sourceEpisodeID)
	}

	return ResolutionFlagged, r.flag(ctx, old, extracted, sourceEpisodeID)
}

func objectsCompatible(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == "" || lb == "" {
		return false
	}
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

func (r *Resolver) insert(ctx context.Context, extracted ExtractedFact, sourceEpisodeID string) error {
	fact := newFact(extracted, sourceEpisodeID)
	return r.store.InsertFact(ctx, fact)
}

func (r *Resolver) refine(ctx context.Context, old *SemanticFact, extracted ExtractedFact, sourceEpisodeID string) error {
	if len(extracted.Object) > len(old.Object) {
		old.Object = extracted.Object
	}
	old.Confidence = boostAdd(old.Confidence, r.params.RefinementConfidenceBump)
	old.SourceEpisodes = append(old.SourceEpisodes, sourceEpisodeID)
	return r.store.UpdateFact(ctx, old)
}

func (r *Resolver) supersede(ctx context.Context, old *SemanticFact, extracted ExtractedFact, sourceEpisodeID string) error {
	fact := newFact(extracted, sourceEpisodeID)
	if err := r.store.InsertFact(ctx, fact); err != nil {
		return err
	}
	old.SupersededBy = &fact.ID
	return r.store.UpdateFact(ctx, old)
}

func (r *Resolver) flag(ctx context.Context, old *SemanticFact, extracted ExtractedFact, sourceEpisodeID string) error {
	fact := newFact(extracted, sourceEpisodeID)
	fact.FlaggedForReview = true
	if err := r.store.InsertFact(ctx, fact); err != nil {
		return err
	}
	old.FlaggedForReview = true
	if err := r.store.UpdateFact(ctx, old); err != nil {
		return err
	}
	if r.inbox != nil {
		r.inbox.Append(ReviewEntry{
			OldFactID:  old.ID,
			NewSubject: extracted.Subject,
			NewObject:  extracted.Object,
			OldObject:  old.Object,
			Reason:     "ambiguous conflict: neither refinement, decision supersession, nor confidence delta applied",
			At:         time.Now().UTC(),
		})
	}
	return nil
}

func newFact(extracted ExtractedFact, sourceEpisodeID string) *SemanticFact {
	return &SemanticFact{
		Kind:           extracted.Kind,
		Statement:      extracted.Statement,
		Subject:        extracted.Subject,
		Predicate:      extracted.Predicate,
		Object:         extracted.Object,
		Confidence:     extracted.Confidence,
		Salience:       1.0,
		SourceEpisodes: []string{sourceEpisodeID},
	}
}
