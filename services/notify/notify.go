// Package notify turns workflow events into emails to students.
package notify

import (
	"context"
	"net/mail"
	"text/template"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/roster"
)

var (
	feedbackTmpl = template.Must(template.New("feedback").Parse(`Hi {{.Student.Name}},

Your submission {{.Event.SubmissionID}} is now "{{.Event.To}}".
{{if eq .Event.To "resubmission_requested"}}Your assessor has asked for more evidence, please check the feedback and resubmit.
{{else if eq .Event.To "approved"}}Well done, it has been approved and will be signed off shortly.
{{else}}It has been signed off.
{{end}}
{{.Link}}
`))

	gatewayTmpl = template.Must(template.New("gateway").Parse(`Hi {{.Student.Name}},

Congratulations, you have passed the gateway and can now be booked for your end-point assessment.

{{.Link}}
`))

	subjects = map[string]string{
		"approved":               "Your submission has been approved",
		"resubmission_requested": "More evidence is needed",
		"signed_off":             "Your submission has been signed off",
	}
)

type tmplData struct {
	Student roster.Student
	Event   core.Event
	Link    string
}

// Notifier emails students about the events that concern them.
type Notifier struct {
	students roster.Directory
	email    core.EmailService
	logger   core.Logger
	baseURL  string
}

func NewNotifier(students roster.Directory, email core.EmailService, logger core.Logger, conf *core.Config) *Notifier {
	return &Notifier{students: students, email: email, logger: logger, baseURL: conf.FrontendBaseURL}
}

// HandleEvent is an event bus subscriber.
func (n *Notifier) HandleEvent(ctx context.Context, evt core.Event) {
	var (
		tmpl    *template.Template
		subject string
		link    string
	)
	switch evt.Type {
	case core.EventSubmissionTransitioned:
		s, ok := subjects[evt.To]
		if !ok {
			return
		}
		tmpl, subject, link = feedbackTmpl, s, n.baseURL+"/submissions/"+evt.SubmissionID
	case core.EventGatewayPassed:
		tmpl, subject, link = gatewayTmpl, "Gateway passed", n.baseURL+"/gateway/"+evt.QualificationID
	default:
		return
	}

	student, err := n.students.GetStudent(ctx, evt.StudentID)
	if err != nil {
		n.logger.Warn("notify: student lookup failed", err, map[string]interface{}{"student": evt.StudentID})
		return
	}
	if student.Email == "" {
		return
	}

	n.email.SendMessages(&core.EmailMessage{
		To:           []mail.Address{student.Address()},
		Subject:      subject,
		Template:     tmpl,
		TemplateData: tmplData{Student: student, Event: evt, Link: link},
	})
}
