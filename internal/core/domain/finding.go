package domain

import "math"

type DuplicateFinding struct {
	DocumentID1 string  `json:"documentId1"`
	DocumentID2 string  `json:"documentId2"`
	Page1       int     `json:"page1"`
	Page2       int     `json:"page2"`
	Content1    string  `json:"content1"`
	Content2    string  `json:"content2"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason"`
	Category    string  `json:"category"`
}

// PairSide is one half of a candidate pair sent to the reasoning capability.
type PairSide struct {
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	Content    string `json:"content"`
}

type CandidatePair struct {
	Left  PairSide `json:"left"`
	Right PairSide `json:"right"`
}

// PairJudgement is the reasoning capability's verdict on one CandidatePair.
type PairJudgement struct {
	IsDuplicate bool    `json:"is_duplicate"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason"`
	Category    string  `json:"category"`
}

// DocumentMatch is a duplicated excerpt pair found by whole-document comparison.
// Content1 is taken from the left document, Content2 from the right one.
type DocumentMatch struct {
	Content1 string  `json:"content1"`
	Content2 string  `json:"content2"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
	Category string  `json:"category"`
}

const (
	CategoryVerbatim   = "verbatim"
	CategoryParaphrase = "paraphrase"
	CategoryPartial    = "partial"
)

// ClampScore bounds a similarity score to [0, 1].
func ClampScore(score float64) float64 {
	switch {
	case math.IsNaN(score):
		return 0
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
