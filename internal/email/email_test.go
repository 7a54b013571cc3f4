package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/Domenick1991/flightsaga/config"
	"github.com/Domenick1991/flightsaga/internal/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSender_LogOnlyWithoutHost(t *testing.T) {
	s := NewSender(config.SMTPConfig{}, nil)
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("smtp must not be used without a host")
		return nil
	}

	assert.NoError(t, s.Send(context.Background(), kafka.NotificationEvent{Recipient: "a@x.io", Subject: "hi"}))
}

func TestSender_SMTP(t *testing.T) {
	s := NewSender(config.SMTPConfig{Host: "mail.local", Port: 2525, From: "noreply@flights.io"}, nil)

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	err := s.Send(context.Background(), kafka.NotificationEvent{Recipient: "a@x.io", Subject: "Booking Confirmed", Body: "PNR-ABCDEF12"})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, []string{"a@x.io"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Booking Confirmed\r\n")
	assert.Contains(t, string(gotMsg), "PNR-ABCDEF12")
}

func TestSender_Errors(t *testing.T) {
	s := NewSender(config.SMTPConfig{Host: "mail.local", Port: 25}, nil)
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }

	assert.Error(t, s.Send(context.Background(), kafka.NotificationEvent{Recipient: "a@x.io"}))
	assert.Error(t, s.Send(context.Background(), kafka.NotificationEvent{}))
}
