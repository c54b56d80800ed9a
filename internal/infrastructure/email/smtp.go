package email

import (
	"context"
	"fmt"
	"html"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/gomail.v2"

	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/domain/subscription"
)

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	BaseURL     string // Base URL for email links (e.g., "https://jaxspot.example")
}

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPRecoveryMailer sends the recovery mail in the member's language.
type SMTPRecoveryMailer struct {
	config  SMTPConfig
	dialer  sender
	matcher language.Matcher
}

func NewSMTPRecoveryMailer(config SMTPConfig) *SMTPRecoveryMailer {
	dialer := gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	return newSMTPRecoveryMailer(config, dialer)
}

func newSMTPRecoveryMailer(config SMTPConfig, dialer sender) *SMTPRecoveryMailer {
	return &SMTPRecoveryMailer{
		config:  config,
		dialer:  dialer,
		matcher: language.NewMatcher(supportedLanguages),
	}
}

// SendRecoveryMail tells the member that their purchase went through.
func (s *SMTPRecoveryMailer) SendRecoveryMail(ctx context.Context, m *member.Member, sub *subscription.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmpl := s.templateFor(m)

	until := ""
	if exp := sub.ExpiresAt(); exp != nil {
		until = exp.Format(time.DateOnly)
	}
	link := s.config.BaseURL + "/"

	plainBody := fmt.Sprintf(tmpl.plain, m.Name(), until, link)
	htmlBody := fmt.Sprintf(tmpl.html, html.EscapeString(m.Name()), until, link, link)

	return s.sendEmail(m.Email(), tmpl.subject, htmlBody, plainBody)
}

func (s *SMTPRecoveryMailer) templateFor(m *member.Member) recoveryTemplate {
	_, idx, _ := s.matcher.Match(m.Language(language.French))
	return recoveryTemplates[idx]
}

func (s *SMTPRecoveryMailer) sendEmail(to, subject, htmlBody, plainBody string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.config.FromAddress, s.config.FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plainBody)
	msg.AddAlternative("text/html", htmlBody)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
