// Package notify delivers application status changes to applicants.
//
// Sinks implement services.Notifier. Email goes out through SMTP
// (go-mail) or Amazon SES; SMS through Amazon SNS. The log sink only
// records the message and is the default for local development.
package notify

import (
	"bytes"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/tbourn/go-adoption-backend/internal/domain"
)

// ErrNoRecipient is returned when the applicant has no address for the
// sink's channel.
var ErrNoRecipient = errors.New("applicant has no contact address")

// Message is a rendered notification.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type messageData struct {
	Name    string
	PetName string
	Status  string
	Cascade bool
}

const textBody = `Hello {{.Name}},

Your adoption application for {{.PetName}} has been {{.Status}}.
{{- if .Cascade}}
{{.PetName}} has found a home with another applicant.{{end}}
{{- if eq .Status "approved"}}
The owner will be in touch to arrange the handover.{{end}}

Thank you for choosing adoption.
`

const htmlBody = `<p>Hello {{.Name}},</p>
<p>Your adoption application for <strong>{{.PetName}}</strong> has been <strong>{{.Status}}</strong>.</p>
{{- if .Cascade}}
<p>{{.PetName}} has found a home with another applicant.</p>{{end}}
{{- if eq .Status "approved"}}
<p>The owner will be in touch to arrange the handover.</p>{{end}}
<p>Thank you for choosing adoption.</p>
`

var (
	textTmpl = texttemplate.Must(texttemplate.New("text").Parse(textBody))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(htmlBody))
)

// Compose renders the message for ch. To is left empty; each sink fills in
// its own channel address.
func Compose(ch domain.StatusChange) (Message, error) {
	name := strings.TrimSpace(ch.Applicant.FirstName + " " + ch.Applicant.LastName)
	if name == "" {
		name = ch.Applicant.Username
	}
	if name == "" {
		name = "there"
	}
	d := messageData{
		Name:    name,
		PetName: ch.Pet.Name,
		Status:  strings.ToLower(string(ch.Application.Status)),
		Cascade: ch.Cascade,
	}

	var txt, html bytes.Buffer
	if err := textTmpl.Execute(&txt, d); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	if err := htmlTmpl.Execute(&html, d); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	return Message{
		Subject: fmt.Sprintf("Your application for %s was %s", ch.Pet.Name, d.Status),
		Text:    txt.String(),
		HTML:    html.String(),
	}, nil
}
