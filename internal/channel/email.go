package channel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/repo"
)

// smtpTimeout bounds the dial and the whole relay session, so one hung
// relay cannot stall a sweep worker.
const smtpTimeout = 10 * time.Second

// EmailSender delivers through each tenant's own SMTP relay. The
// integration record is read per send so credential changes take effect
// without a restart.
type EmailSender struct {
	accounts repo.AccountStore

	// sendMail is swappable in tests; defaults to sendViaRelay.
	sendMail func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailSender(accounts repo.AccountStore) *EmailSender {
	return &EmailSender{
		accounts: accounts,
		sendMail: sendViaRelay,
	}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) (*Result, error) {
	in, err := s.accounts.GetEmailIntegration(ctx, msg.TenantID)
	if err != nil {
		return nil, err
	}
	if in == nil || !in.Enabled {
		return nil, fmt.Errorf("tenant %s email: %w", msg.TenantID, ErrNotConfigured)
	}
	if in.Host == "" || in.From == "" {
		return nil, fmt.Errorf("tenant %s email relay incomplete: %w", msg.TenantID, ErrNotConfigured)
	}
	if msg.To == "" {
		return nil, fmt.Errorf("empty recipient address")
	}

	var auth smtp.Auth
	if in.Username != "" && in.Password != "" {
		auth = smtp.PlainAuth("", in.Username, in.Password, in.Host)
	}

	addr := fmt.Sprintf("%s:%d", in.Host, in.Port)
	raw := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", in.From, msg.To, msg.Subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			msg.Body,
	)

	if err := s.sendMail(ctx, addr, auth, in.From, []string{msg.To}, raw); err != nil {
		return nil, fmt.Errorf("smtp %s: %w", addr, err)
	}

	return &Result{Channel: model.ChannelEmail, ProviderID: addr}, nil
}

// sendViaRelay runs one SMTP session with a hard deadline on every read
// and write. The deadline is the earlier of the context's and smtpTimeout
// from now.
func sendViaRelay(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	dialer := net.Dialer{Timeout: smtpTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(smtpTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		conn.Close()
		return err
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.Quit()
}
