// AngelaMos | 2026
// mailer_test.go

package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/carterperez-dev/templates/account-service/internal/config"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("Acme", 20*time.Minute)
	require.NoError(t, err)
	return r
}

func TestRender_Templates(t *testing.T) {
	r := newRenderer(t)

	body, err := r.Render(Message{
		Template: TemplateVerifyEmail,
		Data:     Data{Username: "alice", Link: "https://x.test/verify/abc"},
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Hi alice")
	assert.Contains(t, body, `href="https://x.test/verify/abc"`)
	assert.Contains(t, body, "20 minutes")
	assert.Contains(t, body, "<!DOCTYPE html>")

	body, err = r.Render(Message{
		Template: TemplateResetPassword,
		Data:     Data{Username: "<b>bob</b>", Link: "https://x.test/reset/abc"},
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Choose a new password")
	assert.NotContains(t, body, "<b>bob</b>")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, err := newRenderer(t).Render(Message{Template: "nope"})
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "MAIL_UNKNOWN_TEMPLATE", oopsErr.Code())
}

func TestSMTPMailer_Send(t *testing.T) {
	d := &fakeDialer{}
	m := &SMTPMailer{dialer: d, from: "noreply@acme.test", renderer: newRenderer(t)}

	err := m.Send(context.Background(), Message{
		To:       "alice@example.com",
		Subject:  "Verify your email",
		Template: TemplateVerifyEmail,
		Data:     Data{Username: "alice", Link: "https://x.test/v/1"},
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"alice@example.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"noreply@acme.test"}, d.sent[0].GetHeader("From"))
}

func TestSMTPMailer_SendFailure(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	m := &SMTPMailer{dialer: d, from: "noreply@acme.test", renderer: newRenderer(t)}

	err := m.Send(context.Background(), Message{
		To:       "alice@example.com",
		Template: TemplateResetPassword,
	})
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "MAIL_SEND_FAILED", oopsErr.Code())
	assert.Equal(t, "alice@example.com", oopsErr.Context()["to"])
}

func TestSMTPMailer_CancelledContext(t *testing.T) {
	d := &fakeDialer{}
	m := &SMTPMailer{dialer: d, renderer: newRenderer(t)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, Message{To: "a@b.co", Template: TemplateVerifyEmail})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, d.sent)
}

func TestNew_PicksLogMailerWithoutHost(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	m := New(config.MailConfig{}, newRenderer(t), logger)
	_, isLog := m.(*LogMailer)
	require.True(t, isLog)

	require.NoError(t, m.Send(context.Background(), Message{
		To:       "alice@example.com",
		Template: TemplateVerifyEmail,
		Data:     Data{Link: "https://x.test/v/1"},
	}))
	assert.Contains(t, buf.String(), "https://x.test/v/1")

	m = New(config.MailConfig{SMTPHost: "smtp.acme.test", SMTPPort: 587}, newRenderer(t), logger)
	_, isSMTP := m.(*SMTPMailer)
	assert.True(t, isSMTP)
}
