package memory

import "strings"

var (
	decisionPhrases   = []string{"decided", "let's go with", "the plan is", "we'll use", "going with"}
	preferencePhrases = []string{"prefer", "love", "hate", "always", "never", "favorite"}
	explicitMarkers   = []string{"remember this", "note that", "important:"}
)

const (
	confidenceDecision   = 0.90
	confidencePreference = 0.80
	confidenceExplicit   = 0.85
	confidenceFallback   = 0.70
)

// candidateCutoffImportance is the importance floor a candidate scan
// also accepts (see CandidateScanPredicate), and the floor the
// extraction fallback rule re-checks independently since a candidate
// can reach extraction via retrieval_count instead of importance.
const candidateCutoffImportance = 0.8

func containsAny(content string, phrases []string) bool {
	lower := strings.ToLower(content)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// CandidateScanPredicate reports whether an unconsolidated episode
// qualifies for extraction consideration per the consolidation loop's
// candidate scan rule.
func CandidateScanPredicate(ep *EpisodicTrace) bool {
	if ep.Importance >= candidateCutoffImportance {
		return true
	}
	if ep.RetrievalCount >= 5 {
		return true
	}
	return containsAny(ep.Content, decisionPhrases) ||
		containsAny(ep.Content, preferencePhrases) ||
		containsAny(ep.Content, explicitMarkers)
}

// ExtractedFact is a candidate SemanticFact pulled from one episode,
// not yet run through conflict resolution.
type ExtractedFact struct {
	Kind       FactKind
	Statement  string
	Subject    string
	Predicate  string
	Object     string
	Confidence float64
}

// Extract applies the rule-based extraction table to one episode's
// content. The first matching rule wins; ok is false if no rule fires,
// meaning the episode stays unconsolidated.
func Extract(ep *EpisodicTrace) (ExtractedFact, bool) {
	switch {
	case containsAny(ep.Content, decisionPhrases):
		return buildFact(ep, FactKindDecision, confidenceDecision), true
	case containsAny(ep.Content, preferencePhrases):
		return buildFact(ep, FactKindPreference, confidencePreference), true
	case containsAny(ep.Content, explicitMarkers):
		return buildFact(ep, FactKindFact, confidenceExplicit), true
	case ep.Importance >= candidateCutoffImportance:
		return buildFact(ep, FactKindFact, confidenceFallback), true
	default:
		return ExtractedFact{}, false
	}
}

func buildFact(ep *EpisodicTrace, kind FactKind, confidence float64) ExtractedFact {
	subject, predicate, object := extractTriple(ep.Content)
	return ExtractedFact{
		Kind:       kind,
		Statement:  strings.TrimSpace(ep.Content),
		Subject:    subject,
		Predicate:  predicate,
		Object:     object,
		Confidence: confidence,
	}
}

// extractTriple derives a crude (subject, predicate, object) triple
// from a sentence using simple noun-phrase heuristics: the first word
// (with first-person "I", "I'll" and "I'm" collapsed to "user") is the
// subject, the first verb-like token after it is the predicate, and the
// remainder is the object. This is intentionally not a parser — the
// textual statement, not the triple, is the thing retrieval actually
// returns; the triple only needs to be a stable conflict key.
func extractTriple(content string) (subject, predicate, object string) {
	words := strings.Fields(strings.TrimSpace(content))
	if len(words) == 0 {
		return "unknown", "states", ""
	}

	subject = strings.ToLower(strings.Trim(words[0], ".,!?;:\"'"))
	if subject == "i" || subject == "i'll" || subject == "i'm" {
		subject = "user"
	}

	predicate = "relates_to"
	objectWords := words
	for i, w := range words[1:] {
		lw := strings.ToLower(strings.Trim(w, ".,!?;:\"'"))
		if isPredicateWord(lw) {
			predicate = lw
			objectWords = words[i+2:]
			break
		}
	}

	object = strings.TrimSpace(strings.Join(objectWords, " "))
	if object == "" {
		object = content
	}
	return subject, predicate, object
}

var predicateWords = map[string]bool{
	"is": true, "are": true, "was": true, "were": true,
	"likes": true, "like": true, "prefers": true, "prefer": true,
	"wants": true, "want": true, "decided": true, "uses": true, "use": true,
	"has": true, "have": true, "needs": true, "need": true,
}

func isPredicateWord(w string) bool {
	return predicateWords[w]
}
