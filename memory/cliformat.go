package memory

import "strings"

// CLIResult is one search hit rendered in the external memory-search
// compatible wire format.
type CLIResult struct {
	DocID   string  `json:"docid"`
	Score   float64 `json:"score"`
	File    string  `json:"file"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
}

const cliSnippetPrefix = "@@ -1,4 @@\n\n"

// ToCLIResults converts retrieval results into the CLI-compatible wire
// format: docid is "#" + first 6 hex chars of the uuid with dashes
// stripped, title is the first non-empty line truncated to 60
// characters, snippet is the literal diff-style prefix followed by the
// first 300 characters of content.
func ToCLIResults(results []Result) []CLIResult {
	out := make([]CLIResult, 0, len(results))
	for _, r := range results {
		out = append(out, CLIResult{
			DocID:   "#" + stripDashes(r.ID.String())[:6],
			Score:   clamp01(r.Score),
			File:    "ethos://memory/" + r.ID.String(),
			Title:   firstLineTruncated(r.Content, 60),
			Snippet: cliSnippetPrefix + truncate(r.Content, 300),
		})
	}
	return out
}

func stripDashes(s string) string {
	return strings.ReplaceAll(s, "-", "")
}

func firstLineTruncated(content string, max int) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			return truncate(line, max)
		}
	}
	return ""
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
