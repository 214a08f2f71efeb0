// Package receipt renders and delivers ticket receipts: the HTML email with an
// entry QR code, the SMTP mailer, and the HTTP notifier that triggers them.
package receipt

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/gomail.v2"

	"spark/pkg/logger"
	"spark/pkg/payment/types"
)

// Sender delivers a receipt to its recipient
type Sender interface {
	Send(ctx context.Context, r *types.Receipt) error
}

// SMTPConfig holds mail server settings
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// Mailer sends ticket emails over SMTP
type Mailer struct {
	from   string
	dialer *gomail.Dialer
	send   func(m *gomail.Message) error
	now    func() time.Time
}

var _ Sender = (*Mailer)(nil)

// NewMailer creates an SMTP mailer
func NewMailer(cfg SMTPConfig) *Mailer {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	m := &Mailer{
		dialer: dialer,
		now:    time.Now,
	}
	m.from = gomail.NewMessage().FormatAddress(cfg.FromAddress, cfg.FromName)
	m.send = func(msg *gomail.Message) error {
		return m.dialer.DialAndSend(msg)
	}
	return m
}

// WithTransport replaces the SMTP delivery function
func (m *Mailer) WithTransport(send func(msg *gomail.Message) error) *Mailer {
	m.send = send
	return m
}

// BuildMessage renders the email for r with the QR code embedded inline
func (m *Mailer) BuildMessage(r *types.Receipt) (*gomail.Message, error) {
	if r.Email == "" {
		return nil, fmt.Errorf("receipt has no email address")
	}

	body, err := RenderHTML(r, m.now())
	if err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}

	png, err := TicketQR(r)
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", r.Email)
	msg.SetHeader("Subject", Subject(r))
	msg.SetBody("text/html", body)
	msg.Embed(QRContentID,
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(png)
			return err
		}),
		gomail.SetHeader(map[string][]string{"Content-Type": {"image/png"}}),
	)
	return msg, nil
}

// Send renders and delivers the ticket email
func (m *Mailer) Send(ctx context.Context, r *types.Receipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := m.BuildMessage(r)
	if err != nil {
		return err
	}

	if err := m.send(msg); err != nil {
		logger.ErrorString("Receipt", "Send", fmt.Sprintf("to %s receipt %s: %v", r.Email, r.MpesaReceipt, err))
		return fmt.Errorf("send receipt email: %w", err)
	}

	logger.InfoString("Receipt", "Send", fmt.Sprintf("ticket email sent to %s receipt %s", r.Email, r.MpesaReceipt))
	return nil
}
