package email

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.messages = append(c.messages, m...)
	return c.err
}

func testSubscription(t *testing.T) *subscription.Subscription {
	t.Helper()
	expiry := time.Date(2024, 5, 18, 0, 0, 0, 0, time.UTC)
	created := expiry.AddDate(0, 0, -8)
	sub, err := subscription.ReconstructSubscription(1, "tid-1", vo.ProviderMPulse, vo.StatusActive, true, &expiry, 7, 2, created, created)
	require.NoError(t, err)
	return sub
}

func render(t *testing.T, msg *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestSendRecoveryMail_Language(t *testing.T) {
	tests := []struct {
		name        string
		locale      string
		wantSubject string
	}{
		{name: "french", locale: "fr_FR", wantSubject: "Votre abonnement Jaxspot est actif"},
		{name: "english", locale: "en_GB", wantSubject: "Your Jaxspot subscription is active"},
		{name: "unsupported falls back to french", locale: "de_DE", wantSubject: "Votre abonnement Jaxspot est actif"},
		{name: "empty falls back to french", locale: "", wantSubject: "Votre abonnement Jaxspot est actif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := &captureSender{}
			mailer := newSMTPRecoveryMailer(SMTPConfig{FromAddress: "noreply@jaxspot.example", FromName: "Jaxspot", BaseURL: "https://jaxspot.example"}, dialer)

			m, err := member.ReconstructMember(7, "ana@example.com", "Ana", tt.locale, false, "", "")
			require.NoError(t, err)

			require.NoError(t, mailer.SendRecoveryMail(context.Background(), m, testSubscription(t)))
			require.Len(t, dialer.messages, 1)

			msg := dialer.messages[0]
			assert.Equal(t, []string{tt.wantSubject}, msg.GetHeader("Subject"))
			assert.Equal(t, []string{"ana@example.com"}, msg.GetHeader("To"))
			assert.Contains(t, render(t, msg), "2024-05-18")
		})
	}
}

func TestSendRecoveryMail_SendFailure(t *testing.T) {
	dialer := &captureSender{err: errors.New("connection refused")}
	mailer := newSMTPRecoveryMailer(SMTPConfig{FromAddress: "noreply@jaxspot.example"}, dialer)

	m, err := member.ReconstructMember(7, "ana@example.com", "Ana", "fr", false, "", "")
	require.NoError(t, err)

	err = mailer.SendRecoveryMail(context.Background(), m, testSubscription(t))
	assert.Error(t, err)
}
