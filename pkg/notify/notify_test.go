package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/stars-api/pkg/config"
)

func TestEmailSenderComposesMail(t *testing.T) {
	sender, err := NewEmailSender(config.SMTPConfig{Host: "smtp.local", Port: 25, From: "stars@ntu", MailDomain: "e.ntu.edu.sg"})
	require.NoError(t, err)

	var gotAddr string
	var gotTo []string
	var gotBody string
	sender.sendMail = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotBody = addr, to, string(msg)
		return nil
	}

	err = sender.Send(context.Background(), Message{Username: "Alice", Subject: "STARS: waitlist", Body: "You have been accepted on the waitlist for CZ2002/10101!"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.local:25", gotAddr)
	assert.Equal(t, []string{"alice@e.ntu.edu.sg"}, gotTo)
	assert.True(t, strings.Contains(gotBody, "Subject: STARS: waitlist\r\n"))
	assert.True(t, strings.Contains(gotBody, "accepted on the waitlist for CZ2002/10101!"))
}

func TestEmailSenderWrapsFailure(t *testing.T) {
	sender, err := NewEmailSender(config.SMTPConfig{Host: "smtp.local", Port: 25, MailDomain: "@e.ntu.edu.sg"})
	require.NoError(t, err)
	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }

	err = sender.Send(context.Background(), Message{Username: "bob"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bob@e.ntu.edu.sg")
}

func TestNewEmailSenderRequiresHost(t *testing.T) {
	_, err := NewEmailSender(config.SMTPConfig{MailDomain: "e.ntu.edu.sg"})
	assert.Error(t, err)
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, NewLogSender(zap.New(core)).Send(context.Background(), Message{Username: "carol", Reason: "waitlist"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "carol", logs.All()[0].ContextMap()["username"])
}
