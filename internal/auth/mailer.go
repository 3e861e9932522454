package auth

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"net/url"
	"time"

	"github.com/google/uuid"
)

var ErrMailUnavailable = errors.New("smtp is not configured")

const (
	loginSubject = "조합 관리자 로그인 링크"
	loginBody    = "아래 링크를 눌러 로그인하세요:\n\n%s\n\n이 링크는 15분 후 만료되며 한 번만 사용할 수 있습니다.\n"
)

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends console login links.
type Mailer struct {
	config Config
	send   sendFunc
	now    func() time.Time
}

// NewMailer creates a mailer with the given config.
func NewMailer(config Config) *Mailer {
	return &Mailer{config: config, send: smtp.SendMail, now: time.Now}
}

// LoginLink builds the verify URL for a token.
func (m *Mailer) LoginLink(token string) string {
	return m.config.BaseURL + "/auth/verify?token=" + url.QueryEscape(token)
}

// SendLoginLink mails the login link and returns it. Without SMTP the link
// is only logged, and only in dev mode.
func (m *Mailer) SendLoginLink(email, token string) (string, error) {
	link := m.LoginLink(token)

	cfg := m.config.SMTP
	if !cfg.IsConfigured() {
		if m.config.DevMode {
			slog.Info("login link", "email", email, "link", link)
			return link, nil
		}
		return "", ErrMailUnavailable
	}

	var a smtp.Auth
	if cfg.User != "" {
		a = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	msg := m.buildEmail(cfg.From, email, loginSubject, fmt.Sprintf(loginBody, link))
	if err := m.send(net.JoinHostPort(cfg.Host, cfg.Port), a, cfg.From, []string{email}, msg); err != nil {
		return "", fmt.Errorf("sending email: %w", err)
	}

	slog.Info("login link sent", "email", email)
	return link, nil
}

// buildEmail renders a UTF-8 plain text message with a B-encoded subject.
func (m *Mailer) buildEmail(from, to, subject, body string) []byte {
	domain := "localhost"
	if u, err := url.Parse(m.config.BaseURL); err == nil && u.Hostname() != "" {
		domain = u.Hostname()
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domain)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.Bytes()
}
