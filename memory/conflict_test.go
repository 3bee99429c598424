package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeFactStore implements Store with only the fact-related operations
// wired; every other method is unreachable from the conflict resolver
// and panics if called, so a test calling one fails loudly instead of
// silently passing.
type fakeFactStore struct {
	active  map[string][]*SemanticFact
	facts   map[uuid.UUID]*SemanticFact
	updated []*SemanticFact
}

func newFakeFactStore() *fakeFactStore {
	return &fakeFactStore{active: make(map[string][]*SemanticFact), facts: make(map[uuid.UUID]*SemanticFact)}
}

func (f *fakeFactStore) withActive(fact *SemanticFact) *fakeFactStore {
	fact.ID = uuid.New()
	key := fact.Subject + "|" + fact.Predicate
	f.active[key] = append(f.active[key], fact)
	f.facts[fact.ID] = fact
	return f
}

func (f *fakeFactStore) ActiveFactsBySubjectPredicate(ctx context.Context, subject, predicate string) ([]*SemanticFact, error) {
	return f.active[subject+"|"+predicate], nil
}

func (f *fakeFactStore) InsertFact(ctx context.Context, fact *SemanticFact) error {
	if fact.ID == uuid.Nil {
		fact.ID = uuid.New()
	}
	f.facts[fact.ID] = fact
	return nil
}

func (f *fakeFactStore) UpdateFact(ctx context.Context, fact *SemanticFact) error {
	f.facts[fact.ID] = fact
	f.updated = append(f.updated, fact)
	return nil
}

func (f *fakeFactStore) GetFact(ctx context.Context, id uuid.UUID) (*SemanticFact, error) {
	return f.facts[id], nil
}

func (f *fakeFactStore) TouchSession(ctx context.Context, sessionKey, agentID, channelTag string) error {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) InsertEventAndVector(ctx context.Context, event *SessionEvent, vector *MemoryVector) (uuid.UUID, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) GetVector(ctx context.Context, id uuid.UUID) (*MemoryVector, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) SetVectorEmbedding(ctx context.Context, id uuid.UUID, embedding Embedding, model string) (bool, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) SearchableVectors(ctx context.Context, sourceTypes []SourceType, limit int) ([]*MemoryVector, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) GetVectorBySource(ctx context.Context, sourceType SourceType, sourceID uuid.UUID) (*MemoryVector, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) InsertEpisode(ctx context.Context, ep *EpisodicTrace) error {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) UnconsolidatedCandidates(ctx context.Context, limit int) ([]*EpisodicTrace, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) MarkConsolidated(ctx context.Context, id uuid.UUID) error {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) GetEpisode(ctx context.Context, id uuid.UUID) (*EpisodicTrace, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) BatchVectors(ctx context.Context, offset, limit int) ([]*MemoryVector, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) BatchEpisodes(ctx context.Context, offset, limit int) ([]*EpisodicTrace, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) BatchActiveFacts(ctx context.Context, offset, limit int) ([]*SemanticFact, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) UpdateVector(ctx context.Context, v *MemoryVector) error {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) UpdateEpisode(ctx context.Context, ep *EpisodicTrace) error {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) RecentEventActivity(ctx context.Context, within time.Duration) (bool, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) CountEvents(ctx context.Context) (int64, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) CountVectors(ctx context.Context) (int64, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) GetWorkflowMemory(ctx context.Context, sessionKey, key string) (*WorkflowMemory, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) SetWorkflowMemory(ctx context.Context, sessionKey, key string, value map[string]any) (*WorkflowMemory, error) {
	panic("not used by conflict resolver")
}
func (f *fakeFactStore) Close() error { return nil }

var _ Store = (*fakeFactStore)(nil)

func TestResolver_InsertWhenNoActiveFact(t *testing.T) {
	t.Parallel()

	store := newFakeFactStore()
	resolver := NewResolver(store, DefaultConflictParams(), nil, zap.NewNop())

	res, err := resolver.Resolve(context.Background(), ExtractedFact{
		Subject: "user", Predicate: "prefers", Object: "dark mode", Confidence: 0.8, Kind: FactKindPreference,
	}, "episode-1")

	require.NoError(t, err)
	require.Equal(t, ResolutionInsert, res)
	require.Len(t, store.facts, 1)
}

func TestResolver_RefinementWhenObjectsCompatible(t *testing.T) {
	t.Parallel()

	store := newFakeFactStore().withActive(&SemanticFact{
		Subject: "user", Predicate: "works at", Object: "Acme", Confidence: 0.6,
	})
	resolver := NewResolver(store, DefaultConflictParams(), nil, zap.NewNop())

	res, err := resolver.Resolve(context.Background(), ExtractedFact{
		Subject: "user", Predicate: "works at", Object: "Acme Corp", Confidence: 0.7, Kind: FactKindFact,
	}, "episode-2")

	require.NoError(t, err)
	require.Equal(t, ResolutionRefinement, res)
	require.Len(t, store.updated, 1)
	require.Equal(t, "Acme Corp", store.updated[0].Object)
	require.InDelta(t, 0.65, store.updated[0].Confidence, 1e-9)
}

func TestResolver_DecisionAlwaysSupersedes(t *testing.T) {
	t.Parallel()

	store := newFakeFactStore().withActive(&SemanticFact{
		Subject: "team", Predicate: "decided", Object: "use Postgres", Confidence: 0.9,
	})
	resolver := NewResolver(store, DefaultConflictParams(), nil, zap.NewNop())

	res, err := resolver.Resolve(context.Background(), ExtractedFact{
		Subject: "team", Predicate: "decided", Object: "use MySQL", Confidence: 0.5, Kind: FactKindDecision,
	}, "episode-3")

	require.NoError(t, err)
	require.Equal(t, ResolutionSupersession, res)
	require.Len(t, store.updated, 1)
	require.NotNil(t, store.updated[0].SupersededBy)
}

func TestResolver_AutoSupersessionOnLargeConfidenceDelta(t *testing.T) {
	t.Parallel()

	store := newFakeFactStore().withActive(&SemanticFact{
		Subject: "user", Predicate: "lives in", Object: "Berlin", Confidence: 0.5,
	})
	resolver := NewResolver(store, DefaultConflictParams(), nil, zap.NewNop())

	res, err := resolver.Resolve(context.Background(), ExtractedFact{
		Subject: "user", Predicate: "lives in", Object: "Tokyo", Confidence: 0.9, Kind: FactKindFact,
	}, "episode-4")

	require.NoError(t, err)
	require.Equal(t, ResolutionAutoSupersession, res)
}

func TestResolver_FlaggedWhenAmbiguous(t *testing.T) {
	t.Parallel()

	store := newFakeFactStore().withActive(&SemanticFact{
		Subject: "user", Predicate: "lives in", Object: "Berlin", Confidence: 0.5,
	})
	resolver := NewResolver(store, DefaultConflictParams(), nil, zap.NewNop())

	res, err := resolver.Resolve(context.Background(), ExtractedFact{
		Subject: "user", Predicate: "lives in", Object: "Tokyo", Confidence: 0.55, Kind: FactKindFact,
	}, "episode-5")

	require.NoError(t, err)
	require.Equal(t, ResolutionFlagged, res)
	require.True(t, store.updated[0].FlaggedForReview)
}

func TestResolver_FlaggedWritesReviewInbox(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	inboxPath := filepath.Join(dir, "review.jsonl")
	inbox := NewReviewInbox(inboxPath, zap.NewNop())

	store := newFakeFactStore().withActive(&SemanticFact{
		Subject: "user", Predicate: "lives in", Object: "Berlin", Confidence: 0.5,
	})
	resolver := NewResolver(store, DefaultConflictParams(), inbox, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), ExtractedFact{
		Subject: "user", Predicate: "lives in", Object: "Tokyo", Confidence: 0.55, Kind: FactKindFact,
	}, "episode-6")
	require.NoError(t, err)

	data, err := os.ReadFile(inboxPath)
	require.NoError(t, err)
	require.NotEmpty(t, data)
}

func TestObjectsCompatible(t *testing.T) {
	t.Parallel()

	require.True(t, objectsCompatible("Acme", "Acme Corp"))
	require.True(t, objectsCompatible("Acme Corp", "Acme"))
	require.False(t, objectsCompatible("Berlin", "Tokyo"))
	require.False(t, objectsCompatible("", "Acme"))
}
