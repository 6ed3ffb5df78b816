// Package rostersvc reads students from the external roster & profile service.
package rostersvc

import (
	"context"
	"io/ioutil"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/roster"
)

// Client is a read-only roster client.
type Client struct {
	http *resty.Client
}

var _ roster.Directory = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	c := resty.New().
		SetBaseURL(conf.Roster.BaseURL).
		SetTimeout(conf.Roster.Timeout).
		SetRetryCount(1).
		SetHeader("Accept", "application/json")
	if conf.Roster.APIKey != "" {
		c.SetAuthToken(conf.Roster.APIKey)
	}
	return &Client{http: c}
}

func (c *Client) GetStudent(ctx context.Context, id string) (roster.Student, error) {
	var student roster.Student
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&student).
		Get("/v1/students/{id}")
	if err != nil {
		return roster.Student{}, errors.Wrap(err, "roster.GetStudent")
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return roster.Student{}, core.NewNotFoundError("student", id)
	case resp.IsError():
		return roster.Student{}, errors.Errorf("roster.GetStudent: unexpected status %d", resp.StatusCode())
	}
	return student, nil
}

type rosterFile struct {
	Students []struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		Email      string `yaml:"email"`
		Status     string `yaml:"status"`
		Enrolments []struct {
			QualificationID string `yaml:"qualification_id"`
			Cohort          string `yaml:"cohort"`
		} `yaml:"enrolments"`
	} `yaml:"students"`
}

// LoadFile reads a YAML roster export, e.g. to seed an in-memory directory.
func LoadFile(path string) ([]roster.Student, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading roster file")
	}
	var f rosterFile
	if err = yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing roster file")
	}

	students := make([]roster.Student, 0, len(f.Students))
	for _, s := range f.Students {
		st := roster.Student{
			ID:     core.CleanString(s.ID),
			Name:   core.CleanString(s.Name),
			Email:  core.CleanString(s.Email, true /* lower */),
			Status: roster.Status(core.CleanString(s.Status, true /* lower */)),
		}
		if st.ID == "" {
			return nil, errors.New("roster file: student without id")
		}
		if st.Status == "" {
			st.Status = roster.StatusActive
		}
		for _, e := range s.Enrolments {
			st.Enrolments = append(st.Enrolments, roster.Enrolment{QualificationID: e.QualificationID, Cohort: e.Cohort})
		}
		students = append(students, st)
	}
	return students, nil
}
