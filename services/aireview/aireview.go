// Package aireview is the HTTP client of the external AI review service.
package aireview

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/review"
)

type Client struct {
	http *resty.Client
}

var _ review.Reviewer = (*Client)(nil)

// New returns nil when no base URL is configured (AI review disabled).
func New(conf *core.Config) *Client {
	if conf.AIReview.BaseURL == "" {
		return nil
	}
	c := resty.New().
		SetBaseURL(conf.AIReview.BaseURL).
		SetTimeout(conf.AIReview.Timeout).
		SetRetryCount(1).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})
	if conf.AIReview.APIKey != "" {
		c.SetAuthToken(conf.AIReview.APIKey)
	}
	return &Client{http: c}
}

type suggestRequest struct {
	ItemID          string          `json:"item_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	ReflectionNotes string          `json:"reflection_notes,omitempty"`
	Files           []suggestFile   `json:"files"`
	Criteria        []suggestTarget `json:"criteria"`
}

type suggestFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type suggestTarget struct {
	Code string `json:"code"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type suggestResponse struct {
	ID        string `json:"id"`
	Feedback  string `json:"feedback"`
	Grade     string `json:"grade"`
	Judgments []struct {
		Code   string `json:"criterion"`
		Result string `json:"result"` // met | not_met
	} `json:"judgments"`
}

func (c *Client) Suggest(ctx context.Context, req review.Request) (review.Suggestion, error) {
	body := suggestRequest{
		ItemID:          req.Item.ID,
		Title:           req.Item.Title,
		Description:     req.Item.Description,
		ReflectionNotes: req.Item.ReflectionNotes,
	}
	for _, f := range req.Item.Files {
		body.Files = append(body.Files, suggestFile{Name: f.Name, Type: f.Type, URL: f.URL})
	}
	for _, crit := range req.Criteria {
		body.Criteria = append(body.Criteria, suggestTarget{Code: crit.Code, Type: string(crit.Type), Text: crit.Text})
	}

	var out suggestResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v1/suggestions")
	if err != nil {
		return review.Suggestion{}, errors.Wrap(err, "aireview.Suggest")
	}
	if resp.IsError() {
		return review.Suggestion{}, errors.Errorf("aireview.Suggest: unexpected status %d: %s", resp.StatusCode(), resp.String())
	}

	sug := review.Suggestion{
		ID:       out.ID,
		ItemID:   req.Item.ID,
		Feedback: core.CleanString(out.Feedback),
		Grade:    core.CleanString(out.Grade, true /* lower */),
	}
	for _, j := range out.Judgments {
		sug.Judgments = append(sug.Judgments, review.Judgment{Code: j.Code, Met: j.Result == "met"})
	}
	return sug, nil
}
