package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

func messageResponse(text string) string {
	body, _ := json.Marshal(map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         DefaultModel,
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"content":       []map[string]any{{"type": "text", "text": text}},
		"usage":         map[string]any{"input_tokens": 10, "output_tokens": 10},
	})
	return string(body)
}

func TestVerifyPairsSendsPromptAndParsesAnswer(t *testing.T) {
	var captured string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload)) && len(payload.Messages) > 0 && len(payload.Messages[0].Content) > 0 {
			captured = payload.Messages[0].Content[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, messageResponse("```json\n{\"results\":[{\"index\":1,\"is_duplicate\":true,\"score\":0.88,\"reason\":\"reworded\",\"category\":\"paraphrase\"}]}\n```"))
	}))
	defer server.Close()

	verifier, err := NewVerifier("test-key", Options{BaseURL: server.URL + "/"})
	require.NoError(t, err)

	judgements, err := verifier.VerifyPairs(context.Background(), []domain.CandidatePair{{
		Left:  domain.PairSide{DocumentID: "1", Page: 1, Content: "alpha clause"},
		Right: domain.PairSide{DocumentID: "2", Page: 1, Content: "beta clause"},
	}})

	require.NoError(t, err)
	require.Len(t, judgements, 1)
	assert.True(t, judgements[0].IsDuplicate)
	assert.Equal(t, 0.88, judgements[0].Score)
	assert.Contains(t, captured, "alpha clause")
}

func TestVerifierRejectsEmptyAPIKey(t *testing.T) {
	_, err := NewVerifier(" ", Options{})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrUnauthorized))
}

func TestUnauthorizedAndOverloadedErrorsAreClassified(t *testing.T) {
	cases := map[int]error{
		http.StatusUnauthorized:       domain.ErrUnauthorized,
		http.StatusServiceUnavailable: domain.ErrTemporary,
	}
	for status, kind := range cases {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				fmt.Fprint(w, `{"type":"error","error":{"type":"api_error","message":"nope"}}`)
			}))
			defer server.Close()

			verifier, err := NewVerifier("test-key", Options{BaseURL: server.URL + "/"})
			require.NoError(t, err)

			_, err = verifier.CompareDocuments(context.Background(),
				domain.DocumentRecord{DocumentID: "1", CombinedContent: "a"},
				domain.DocumentRecord{DocumentID: "2", CombinedContent: strings.Repeat("b", 3)},
			)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, kind), "got %v", err)
		})
	}
}
