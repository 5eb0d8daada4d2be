package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTP_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	m := &SMTP{
		cfg: SMTPConfig{Host: "smtp.example.com", Port: 587, User: "u", Password: "p", From: "MyHomeBro <no-reply@myhomebro.com>"},
		send: func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		},
	}

	err := m.Send(context.Background(), Message{To: "hannah@example.com", Subject: "Agreement ready", Body: "Line one\nLine two"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "no-reply@myhomebro.com", gotFrom)
	assert.Equal(t, []string{"hannah@example.com"}, gotTo)
	body := string(gotMsg)
	assert.Contains(t, body, "Subject: Agreement ready\r\n")
	assert.True(t, strings.HasSuffix(body, "Line one\r\nLine two"))
}

func TestSMTP_SendErrors(t *testing.T) {
	m := &SMTP{
		cfg:  SMTPConfig{Host: "smtp.example.com", Port: 25, From: "no-reply@myhomebro.com"},
		send: func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") },
	}

	assert.ErrorContains(t, m.Send(context.Background(), Message{To: "a@example.com"}), "421 busy")
	assert.ErrorContains(t, m.Send(context.Background(), Message{To: "not an address"}), "invalid recipient")
}

func TestNew_WithoutHostLogs(t *testing.T) {
	m := New(SMTPConfig{})
	_, ok := m.(LogMailer)
	assert.True(t, ok)
	assert.NoError(t, m.Send(context.Background(), Message{To: "a@example.com"}))
}
