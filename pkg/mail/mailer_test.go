package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSMTPMailerValidatesSettings(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.Error(t, err)

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "mail.example.com"})
	require.Error(t, err)

	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: true, Host: "mail.example.com", Port: 587})
	require.NoError(t, err)
	require.NotNil(t, mailer)
}

func TestSendDisabledReturnsSentinel(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: "user@example.com", Subject: "hi"})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestFormatMessage(t *testing.T) {
	rendered := FormatMessage("noreply@example.com", "user@example.com", "Verify\r\nyour email", "body text")

	require.Contains(t, rendered, "From: noreply@example.com\r\n")
	require.Contains(t, rendered, "To: user@example.com\r\n")
	require.Contains(t, rendered, "Subject: Verify  your email\r\n")
	require.Contains(t, rendered, "Content-Type: text/plain; charset=UTF-8\r\n")
	require.True(t, strings.HasSuffix(rendered, "\r\nbody text"))
}
