package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCandidateScanPredicate(t *testing.T) {
	t.Parallel()

	require.True(t, CandidateScanPredicate(&EpisodicTrace{Importance: 0.8}))
	require.True(t, CandidateScanPredicate(&EpisodicTrace{RetrievalCount: 5}))
	require.True(t, CandidateScanPredicate(&EpisodicTrace{Content: "I decided to use Postgres."}))
	require.True(t, CandidateScanPredicate(&EpisodicTrace{Content: "My favorite color is blue."}))
	require.True(t, CandidateScanPredicate(&EpisodicTrace{Content: "Note that the deploy window is Friday."}))
	require.False(t, CandidateScanPredicate(&EpisodicTrace{Content: "just chatting", Importance: 0.1, RetrievalCount: 0}))
}

func TestExtract_DecisionRule(t *testing.T) {
	t.Parallel()

	fact, ok := Extract(&EpisodicTrace{Content: "We decided to use Postgres for storage."})
	require.True(t, ok)
	require.Equal(t, FactKindDecision, fact.Kind)
	require.InDelta(t, confidenceDecision, fact.Confidence, 1e-9)
}

func TestExtract_PreferenceRule(t *testing.T) {
	t.Parallel()

	fact, ok := Extract(&EpisodicTrace{Content: "I prefer dark mode in every app."})
	require.True(t, ok)
	require.Equal(t, FactKindPreference, fact.Kind)
	require.InDelta(t, confidencePreference, fact.Confidence, 1e-9)
}

func TestExtract_ExplicitMarkerRule(t *testing.T) {
	t.Parallel()

	fact, ok := Extract(&EpisodicTrace{Content: "Important: the API key rotates monthly."})
	require.True(t, ok)
	require.Equal(t, FactKindFact, fact.Kind)
	require.InDelta(t, confidenceExplicit, fact.Confidence, 1e-9)
}

func TestExtract_ImportanceFallbackRule(t *testing.T) {
	t.Parallel()

	fact, ok := Extract(&EpisodicTrace{Content: "The deployment finished successfully.", Importance: 0.9})
	require.True(t, ok)
	require.Equal(t, FactKindFact, fact.Kind)
	require.InDelta(t, confidenceFallback, fact.Confidence, 1e-9)
}

func TestExtract_NoRuleFires(t *testing.T) {
	t.Parallel()

	_, ok := Extract(&EpisodicTrace{Content: "just chatting about the weather", Importance: 0.1})
	require.False(t, ok)
}

func TestExtract_RulePriorityDecisionBeatsPreference(t *testing.T) {
	t.Parallel()

	fact, ok := Extract(&EpisodicTrace{Content: "I decided I prefer the new dashboard."})
	require.True(t, ok)
	require.Equal(t, FactKindDecision, fact.Kind)
}

func TestExtractTriple_FirstPersonSubjectCollapsesToUser(t *testing.T) {
	t.Parallel()

	fact, ok := Extract(&EpisodicTrace{Content: "I prefer the dark theme."})
	require.True(t, ok)
	require.Equal(t, "user", fact.Subject)
	require.Equal(t, "prefer", fact.Predicate)
}

func TestExtractTriple_EmptyContentYieldsFallbackTriple(t *testing.T) {
	t.Parallel()

	subject, predicate, object := extractTriple("")
	require.Equal(t, "unknown", subject)
	require.Equal(t, "states", predicate)
	require.Empty(t, object)
}
