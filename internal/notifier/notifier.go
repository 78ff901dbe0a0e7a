package notifier

import (
	"fmt"

	"github.com/xArmad/reposter/internal/config"
	"github.com/xArmad/reposter/internal/notifier/providers"
	"github.com/xArmad/reposter/internal/report"
)

// Notifier delivers activity reports by email
type Notifier struct {
	sender Sender
}

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// New creates a new notifier with the given sender
func New(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.EmailConfig) (*Notifier, error) {
	var sender Sender

	switch cfg.Provider {
	case "smtp":
		sender = providers.NewSMTPSender(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			cfg.SMTPPass,
			cfg.FromAddr,
		)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}

	return New(sender), nil
}

// SendReport emails an activity report
func (n *Notifier) SendReport(r *report.Report, toAddr string) error {
	return n.sender.Send(toAddr, r.Subject, r.HTMLBody, r.PlainBody)
}
