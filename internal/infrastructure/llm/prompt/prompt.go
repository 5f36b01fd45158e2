// Package prompt builds the reasoning prompts shared by every LLM adapter and
// parses their JSON answers.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

const DefaultMaxDocumentChars = 6000

// PairVerification asks for one judgement per numbered pair.
func PairVerification(pairs []domain.CandidatePair) string {
	var b strings.Builder
	b.WriteString(`You compare text fragments taken from different documents and decide whether each pair is duplicated content.
A pair is a duplicate when both fragments state the same content, either verbatim or paraphrased. Shared topic alone is not a duplicate.
Return strict JSON: {"results":[{"index":number,"is_duplicate":boolean,"score":number from 0 to 1,"reason":string,"category":"verbatim"|"paraphrase"|"partial"}]}
Return exactly one result per pair, using the pair index. No markdown, no extra keys.

`)
	for idx, pair := range pairs {
		fmt.Fprintf(&b, "Pair %d\nA (document %s, page %d):\n%s\nB (document %s, page %d):\n%s\n\n",
			idx+1,
			pair.Left.DocumentID, pair.Left.Page, pair.Left.Content,
			pair.Right.DocumentID, pair.Right.Page, pair.Right.Content,
		)
	}
	return b.String()
}

// DocumentComparison asks for duplicated excerpts between two whole
// documents. Each document is cut to maxChars runes.
func DocumentComparison(left, right domain.DocumentRecord, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxDocumentChars
	}
	return fmt.Sprintf(`You find duplicated or paraphrased passages between two documents.
For every duplicated passage, copy the exact excerpt from document 1 into content1 and the exact excerpt from document 2 into content2. Do not rewrite excerpts.
Return strict JSON: {"duplicates":[{"content1":string,"content2":string,"score":number from 0 to 1,"reason":string,"category":"verbatim"|"paraphrase"|"partial"}]}
Return {"duplicates":[]} when nothing is duplicated. No markdown, no extra keys.

Document 1 (id %s):
%s

Document 2 (id %s):
%s
`, left.DocumentID, truncateRunes(left.CombinedContent, maxChars), right.DocumentID, truncateRunes(right.CombinedContent, maxChars))
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	count := 0
	for idx := range text {
		if count == limit {
			return text[:idx]
		}
		count++
	}
	return text
}
