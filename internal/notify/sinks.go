package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	mail "github.com/go-mail/mail/v2"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-adoption-backend/internal/domain"
)

// LogNotifier writes each message to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

// NotifyStatusChange implements services.Notifier.
func (n *LogNotifier) NotifyStatusChange(_ context.Context, ch domain.StatusChange) error {
	msg, err := Compose(ch)
	if err != nil {
		return err
	}
	n.Logger.Info().
		Str("application_id", ch.Application.ID).
		Str("applicant_id", ch.Applicant.ID).
		Str("to", ch.Applicant.Email).
		Str("subject", msg.Subject).
		Bool("cascade", ch.Cascade).
		Msg("status notification")
	return nil
}

// mailSender is the part of *mail.Dialer used here.
type mailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPNotifier sends email through an SMTP relay.
type SMTPNotifier struct {
	From   string
	sender mailSender
}

// NewSMTPNotifier dials host:port with STARTTLS required.
func NewSMTPNotifier(host string, port int, username, password, from string) *SMTPNotifier {
	d := mail.NewDialer(host, port, username, password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	return &SMTPNotifier{From: from, sender: d}
}

// NotifyStatusChange implements services.Notifier.
func (n *SMTPNotifier) NotifyStatusChange(_ context.Context, ch domain.StatusChange) error {
	if ch.Applicant.Email == "" {
		return ErrNoRecipient
	}
	msg, err := Compose(ch)
	if err != nil {
		return err
	}
	m := mail.NewMessage()
	m.SetHeader("From", n.From)
	m.SetHeader("To", ch.Applicant.Email)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)
	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// SESAPI is the part of *ses.Client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier sends email through Amazon SES.
type SESNotifier struct {
	Client SESAPI
	From   string
}

// NotifyStatusChange implements services.Notifier.
func (n *SESNotifier) NotifyStatusChange(ctx context.Context, ch domain.StatusChange) error {
	if ch.Applicant.Email == "" {
		return ErrNoRecipient
	}
	msg, err := Compose(ch)
	if err != nil {
		return err
	}
	_, err = n.Client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{ToAddresses: []string{ch.Applicant.Email}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
				Html: &sestypes.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(n.From),
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

// SNSAPI is the part of *sns.Client used here.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier sends an SMS through Amazon SNS to the applicant's phone.
type SNSNotifier struct {
	Client SNSAPI
	// CountryCode is prefixed to stored national numbers, e.g. "+1".
	CountryCode string
}

// NotifyStatusChange implements services.Notifier.
func (n *SNSNotifier) NotifyStatusChange(ctx context.Context, ch domain.StatusChange) error {
	if ch.Applicant.PhoneNumber == "" {
		return ErrNoRecipient
	}
	msg, err := Compose(ch)
	if err != nil {
		return err
	}
	_, err = n.Client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(n.CountryCode + ch.Applicant.PhoneNumber),
		Message:     aws.String(msg.Subject + ". " + "Log in to see the details."),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
