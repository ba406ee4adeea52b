package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/safar/go-shop-api/internal/logging"
	"github.com/safar/go-shop-api/internal/metrics"
	"github.com/safar/go-shop-api/internal/models"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one notification. Failures are reported here
// and never returned as errors.
type Result struct {
	Channel   Channel   `json:"channel"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	SentAt    time.Time `json:"sent_at,omitempty"`
}

type Config struct {
	AdminEmail  string
	CountryCode string
	Timeout     time.Duration
}

type Dispatcher struct {
	sms   SMSSender
	email EmailSender
	cfg   Config
}

// NewDispatcher accepts nil senders; their channel is then skipped.
func NewDispatcher(sms SMSSender, email EmailSender, cfg Config) *Dispatcher {
	if cfg.CountryCode == "" {
		cfg.CountryCode = "+254"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{sms: sms, email: email, cfg: cfg}
}

func OrderSMSText(customer *models.Customer, order *models.Order) string {
	return fmt.Sprintf("Hello %s, your order #%d has been placed successfully.", customer.FirstName, order.ID)
}

func OrderEmailSubject(order *models.Order) string {
	return fmt.Sprintf("New Order #%d", order.ID)
}

func OrderEmailBody(customer *models.Customer, order *models.Order) string {
	items := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, fmt.Sprintf("%s (x%d)", item.ProductName, item.Quantity))
	}

	var b strings.Builder
	b.WriteString("A new order has been placed:\n\n")
	fmt.Fprintf(&b, "Order ID: %d\n", order.ID)
	fmt.Fprintf(&b, "Customer: %s\n", customer.FirstName)
	fmt.Fprintf(&b, "Phone: %s\n", customer.Phone)
	fmt.Fprintf(&b, "Items:\n%s\n", strings.Join(items, "\n"))
	fmt.Fprintf(&b, "Total_Price: %s\n", order.Total().StringFixed(2))
	return b.String()
}

// OrderPlaced texts the customer and emails the admin address. It runs
// after the order is committed.
func (d *Dispatcher) OrderPlaced(ctx context.Context, customer *models.Customer, order *models.Order) []Result {
	results := []Result{
		d.sendSMS(ctx, customer, order),
		d.sendEmail(ctx, customer, order),
	}

	for _, r := range results {
		metrics.Notifications.WithLabelValues(string(r.Channel), string(r.Status)).Inc()

		event := logging.Ctx(ctx).Info()
		if r.Status == StatusFailed {
			event = logging.Ctx(ctx).Warn()
		}
		event.
			Int64("order_id", order.ID).
			Str("channel", string(r.Channel)).
			Str("status", string(r.Status)).
			Str("reason", r.Reason).
			Str("message_id", r.MessageID).
			Msg("order notification")
	}

	return results
}

// recoverSend turns a sender panic into a failed result.
func recoverSend(ctx context.Context, channel Channel, res *Result) {
	if p := recover(); p != nil {
		logging.Ctx(ctx).Error().
			Str("channel", string(channel)).
			Interface("panic", p).
			Msg("notification sender panicked")
		*res = Result{Channel: channel, Status: StatusFailed, Reason: fmt.Sprintf("sender panic: %v", p)}
	}
}

func (d *Dispatcher) sendSMS(ctx context.Context, customer *models.Customer, order *models.Order) (res Result) {
	defer recoverSend(ctx, ChannelSMS, &res)

	if d.sms == nil {
		return Result{Channel: ChannelSMS, Status: StatusSkipped, Reason: "sms gateway not configured"}
	}
	if strings.TrimSpace(customer.Phone) == "" {
		return Result{Channel: ChannelSMS, Status: StatusSkipped, Reason: "customer has no phone number"}
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	to := FormatPhone(customer.Phone, d.cfg.CountryCode)
	sent, err := d.sms.SendSMS(ctx, to, OrderSMSText(customer, order))
	if err != nil {
		return Result{Channel: ChannelSMS, Status: StatusFailed, Reason: err.Error()}
	}
	return Result{Channel: ChannelSMS, Status: StatusSent, MessageID: sent.MessageID, SentAt: sent.SentAt}
}

func (d *Dispatcher) sendEmail(ctx context.Context, customer *models.Customer, order *models.Order) (res Result) {
	defer recoverSend(ctx, ChannelEmail, &res)

	if d.email == nil {
		return Result{Channel: ChannelEmail, Status: StatusSkipped, Reason: "smtp not configured"}
	}
	if d.cfg.AdminEmail == "" {
		return Result{Channel: ChannelEmail, Status: StatusSkipped, Reason: "admin email not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	sent, err := d.email.SendEmail(ctx, []string{d.cfg.AdminEmail}, OrderEmailSubject(order), OrderEmailBody(customer, order))
	if err != nil {
		return Result{Channel: ChannelEmail, Status: StatusFailed, Reason: err.Error()}
	}
	return Result{Channel: ChannelEmail, Status: StatusSent, MessageID: sent.MessageID, SentAt: sent.SentAt}
}
