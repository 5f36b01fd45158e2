package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitSentences cuts text after sentence-terminal punctuation and at blank
// lines. CJK terminals always end a sentence; ASCII terminals only when
// followed by whitespace or the end of text. Returned chunks are trimmed and
// carry their byte offset in text.
func SplitSentences(text string) []TextChunk {
	out := make([]TextChunk, 0, 8)
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		next := i + size

		switch {
		case isCJKTerminal(r):
			next = skipClosers(text, next)
			out = appendSentence(out, text, start, next)
			start = next
		case isASCIITerminal(r):
			end := skipClosers(text, next)
			if end >= len(text) || isSpaceAt(text, end) {
				out = appendSentence(out, text, start, end)
				start = end
				next = end
			}
		case r == '\n' && strings.HasPrefix(text[next:], "\n"):
			out = appendSentence(out, text, start, i)
			start = next
		}
		i = next
	}
	out = appendSentence(out, text, start, len(text))
	return out
}

func appendSentence(out []TextChunk, text string, start, end int) []TextChunk {
	if start >= end {
		return out
	}
	raw := text[start:end]
	trimmedLeft := strings.TrimLeftFunc(raw, unicode.IsSpace)
	trimmed := strings.TrimRightFunc(trimmedLeft, unicode.IsSpace)
	if trimmed == "" {
		return out
	}
	return append(out, TextChunk{
		Text:   trimmed,
		Offset: start + (len(raw) - len(trimmedLeft)),
	})
}

func isCJKTerminal(r rune) bool {
	switch r {
	case '。', '！', '？', '；':
		return true
	}
	return false
}

func isASCIITerminal(r rune) bool {
	switch r {
	case '.', '!', '?', ';':
		return true
	}
	return false
}

func skipClosers(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch r {
		case '"', '\'', ')', ']', '”', '’', '」', '』', '）':
			i += size
		default:
			return i
		}
	}
	return i
}

func isSpaceAt(text string, i int) bool {
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r)
}
