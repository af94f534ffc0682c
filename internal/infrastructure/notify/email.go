package notify

import (
	"context"
	"fmt"
	"html"
	"net/smtp"

	"courtmaster/internal/domain"

	"github.com/google/uuid"
)

// MailSender delivers one HTML message.
type MailSender interface {
	SendMail(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPSender(host, port, username, password, from string) *SMTPSender {
	return &SMTPSender{host: host, port: port, username: username, password: password, from: from}
}

func (s *SMTPSender) SendMail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	msg := []byte(
		"From: " + s.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			body,
	)

	if err := smtp.SendMail(addr, auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// EmailNotifier mails the payer about the outcome of their payment.
type EmailNotifier struct {
	sender MailSender
	users  UserLookup
}

func NewEmailNotifier(sender MailSender, users UserLookup) *EmailNotifier {
	return &EmailNotifier{sender: sender, users: users}
}

func (n *EmailNotifier) Notify(ctx context.Context, ev Event) error {
	user, err := n.users.FindByID(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("email notifier: %w", err)
	}
	if user.Email == "" {
		return nil
	}
	subject, body := renderEmail(user, ev)
	return n.sender.SendMail(ctx, user.Email, subject, body)
}

func renderEmail(user *domain.User, ev Event) (string, string) {
	name := html.EscapeString(user.FullName)
	if name == "" {
		name = html.EscapeString(user.Email)
	}
	amount := ev.Amount.StringFixed(0) + " " + ev.Currency

	booking := ""
	if ev.CourtName != "" {
		booking = fmt.Sprintf("<p>Sân: <b>%s</b> - Ngày: %s</p>", html.EscapeString(ev.CourtName), html.EscapeString(ev.BookingDate))
	}

	if ev.Kind == PaymentSucceeded {
		subject := fmt.Sprintf("Thanh toán thành công - Mã %s", ev.TxnRef)
		body := fmt.Sprintf(
			"<h2>Xin chào %s,</h2><p>Thanh toán <b>%s</b> của bạn đã được xác nhận.</p>%s<p>Mã giao dịch: %s</p>",
			name, amount, booking, html.EscapeString(ev.TxnRef),
		)
		return subject, body
	}

	subject := fmt.Sprintf("Thanh toán thất bại - Mã %s", ev.TxnRef)
	body := fmt.Sprintf(
		"<h2>Xin chào %s,</h2><p>Thanh toán <b>%s</b> không thành công.</p>%s<p>Lý do: %s</p><p>Bạn có thể thử thanh toán lại trong mục Thanh toán.</p>",
		name, amount, booking, html.EscapeString(ev.Reason),
	)
	return subject, body
}
