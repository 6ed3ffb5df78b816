package aireview

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/evidence"
	"github.com/trezcool/evidencehub/core/review"
)

func TestNew(t *testing.T) {
	assert.Nil(t, New(&core.Config{}), "disabled without a base URL")
}

func TestClient_Suggest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v1/suggestions", r.URL.Path)
		assert.Equal(t, "Bearer ai-key", r.Header.Get("Authorization"))

		var body suggestRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "item-1", body.ItemID)
		assert.Len(t, body.Files, 1)
		assert.Equal(t, []suggestTarget{{Code: "K1", Type: "knowledge", Text: "Knows the regulations"}}, body.Criteria)

		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway) // retried once
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"sug-1","feedback":" Good photos. ","grade":"Merit",
			"judgments":[{"criterion":"K1","result":"met"},{"criterion":"S1","result":"not_met"}]}`))
	}))
	defer srv.Close()

	c := New(&core.Config{AIReview: core.AIReviewConfig{BaseURL: srv.URL, APIKey: "ai-key", Timeout: time.Second}})
	require.NotNil(t, c)

	sug, err := c.Suggest(context.Background(), review.Request{
		Item: evidence.Item{ID: "item-1", Title: "Isolation", Files: []evidence.File{{Name: "a.jpg", Type: catalogue.EvidencePhoto, URL: "https://files.test/a.jpg"}}},
		Criteria: []catalogue.Criterion{
			{Code: "K1", Type: catalogue.Knowledge, Text: "Knows the regulations"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, review.Suggestion{
		ID:        "sug-1",
		ItemID:    "item-1",
		Feedback:  "Good photos.",
		Grade:     "merit",
		Judgments: []review.Judgment{{Code: "K1", Met: true}, {Code: "S1", Met: false}},
	}, sug)
}

func TestClient_SuggestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := New(&core.Config{AIReview: core.AIReviewConfig{BaseURL: srv.URL, Timeout: time.Second}})
	_, err := c.Suggest(context.Background(), review.Request{Item: evidence.Item{ID: "item-1"}})
	assert.Error(t, err)
}
