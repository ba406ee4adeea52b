package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender returns nil when host is empty. Authentication is skipped
// when username is empty.
func NewSMTPSender(host, port, username, password, from string) *SMTPSender {
	if host == "" {
		return nil
	}
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		send:     smtp.SendMail,
	}
}

func (s *SMTPSender) SendEmail(ctx context.Context, to []string, subject, body string) (SendResult, error) {
	if len(to) == 0 {
		return SendResult{}, fmt.Errorf("no recipients")
	}

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	messageID := uuid.NewString()
	msg := []byte(
		"From: " + s.from + "\r\n" +
			"To: " + strings.Join(to, ", ") + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"Message-ID: <" + messageID + "@" + s.host + ">\r\n" +
			"Date: " + time.Now().Format(time.RFC1123Z) + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n" +
			"\r\n" +
			strings.ReplaceAll(body, "\n", "\r\n"),
	)

	// net/smtp has no context support; the send is abandoned, not
	// interrupted, when ctx expires.
	done := make(chan error, 1)
	go func() {
		done <- s.send(net.JoinHostPort(s.host, s.port), auth, s.from, to, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
		}
	case <-ctx.Done():
		return SendResult{}, fmt.Errorf("smtp send: %w", ctx.Err())
	}

	return SendResult{MessageID: messageID, SentAt: time.Now()}, nil
}
