package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"ragchat/internal/config"
	"ragchat/internal/logger"
)

// Message is a single HTML email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers account emails.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP notifier when credentials are configured and a
// LogNotifier otherwise.
func New(cfg config.EmailConfig, log *logger.Logger) Notifier {
	if cfg.From == "" || cfg.Password == "" {
		return NewLogNotifier(log)
	}
	return NewSMTPNotifier(cfg, log)
}

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("service", "LogNotifier")}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.log.Info("email not sent, smtp disabled", "subject", msg.Subject, "body", msg.Body)
	return nil
}

// SMTPNotifier sends mail through a STARTTLS submission server with PLAIN auth.
type SMTPNotifier struct {
	host     string
	port     int
	from     string
	password string
	timeout  time.Duration
	log      *logger.Logger
}

// NewSMTPNotifier creates a notifier that sends mail over SMTP with STARTTLS.
func NewSMTPNotifier(cfg config.EmailConfig, log *logger.Logger) *SMTPNotifier {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPNotifier{
		host:     cfg.Server,
		port:     port,
		from:     cfg.From,
		password: cfg.Password,
		timeout:  30 * time.Second,
		log:      log.With("service", "SMTPNotifier"),
	}
}

// Send delivers msg. The dial honours ctx.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(n.host, strconv.Itoa(n.port))
	dialer := &net.Dialer{Timeout: n.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(n.timeout))
	}

	client, err := smtp.NewClient(conn, n.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if err := client.Auth(smtp.PlainAuth("", n.from, n.password, n.host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(n.from); err != nil {
		return err
	}
	if err := client.Rcpt(msg.To); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMIME(n.from, msg)); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	n.log.Debug("email sent", "subject", msg.Subject)
	return client.Quit()
}

func buildMIME(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// WelcomeMessage greets a new account.
func WelcomeMessage(to, username string) Message {
	u := html.EscapeString(username)
	return Message{
		To:      to,
		Subject: "Welcome to RAG PDF Chat!",
		Body: "<h2>Welcome " + u + "!</h2>\n" +
			"<p>Your account is ready.</p>\n" +
			"<p>Upload a PDF and start asking questions about it.</p>\n",
	}
}

// ResetMessage links to the frontend reset page carrying token.
func ResetMessage(to, username, frontendURL, token string) Message {
	link := strings.TrimRight(frontendURL, "/") + "/reset-password.html?token=" + token
	l := html.EscapeString(link)
	return Message{
		To:      to,
		Subject: "Password Reset Request",
		Body: "<h2>Password Reset</h2>\n" +
			"<p>Hi " + html.EscapeString(username) + ",</p>\n" +
			"<p>Use the link below to choose a new password:</p>\n" +
			"<p><a href=\"" + l + "\">" + l + "</a></p>\n" +
			"<p>The link expires in 1 hour.</p>\n",
	}
}

// PasswordChangedMessage confirms a password change.
func PasswordChangedMessage(to, username string) Message {
	return Message{
		To:      to,
		Subject: "Password Changed",
		Body: "<h2>Password Changed</h2>\n" +
			"<p>Hi " + html.EscapeString(username) + ",</p>\n" +
			"<p>Your password was changed.</p>\n",
	}
}

// ProfileUpdatedMessage confirms a profile change.
func ProfileUpdatedMessage(to, username string) Message {
	return Message{
		To:      to,
		Subject: "Profile Updated",
		Body: "<h2>Profile Updated</h2>\n" +
			"<p>Hi " + html.EscapeString(username) + ",</p>\n" +
			"<p>Your profile details were updated.</p>\n",
	}
}
