package notify

import (
	"context"
	"strings"
	"time"
)

type SendResult struct {
	MessageID string
	SentAt    time.Time
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, msg string) (SendResult, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, to []string, subject, body string) (SendResult, error)
}

// FormatPhone normalises a local number to international form: a leading
// 0 becomes countryCode, numbers already starting with + are kept, and
// anything else gets countryCode prepended.
func FormatPhone(raw, countryCode string) string {
	phone := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(phone, "0"):
		return countryCode + phone[1:]
	case strings.HasPrefix(phone, "+"):
		return phone
	default:
		return countryCode + phone
	}
}
