package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers one message. Implementations must honour ctx deadlines.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

func PasswordResetMessage(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Reset Password",
		Body: "To reset your password, please click the link below:\n\n" +
			link + "\n\n" +
			"This link will expire in 1 hour.\n" +
			"If you did not request a password reset, please ignore this email.\n",
	}
}

type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	// Logger receives errors that do not fail a delivery.
	Logger *slog.Logger
}

const defaultSendTimeout = 15 * time.Second

// Send delivers msg in one SMTP session bounded by ctx. Once the server has
// accepted the message, a failing QUIT is logged and the send counts as done.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mm, err := m.newMsg(msg, time.Now())
	if err != nil {
		return err
	}
	c, err := mail.NewClient(m.Host, m.clientOptions(ctx)...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial %s:%d: %w", m.Host, m.Port, err)
	}
	if err := c.Send(mm); err != nil {
		_ = c.Close()
		return fmt.Errorf("smtp send: %w", err)
	}
	if err := c.Close(); err != nil {
		m.logger().Warn("smtp_quit_failed", "to", msg.To, "error", err)
	}
	return nil
}

func (m *SMTPMailer) clientOptions(ctx context.Context) []mail.Option {
	timeout := defaultSendTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	policy := mail.NoTLS
	if m.UseTLS {
		policy = mail.TLSMandatory
	}
	opts := []mail.Option{
		mail.WithPort(m.Port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(policy),
		mail.WithDialContextFunc(dialWithDeadline),
	}
	if m.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.Username),
			mail.WithPassword(m.Password),
		)
	}
	return opts
}

// dialWithDeadline ties the whole session, greeting included, to the
// context deadline.
func dialWithDeadline(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}
	return conn, nil
}

// newMsg builds the MIME message. Addresses are parsed and the subject is
// folded onto one line so no caller input can add headers.
func (m *SMTPMailer) newMsg(msg Message, now time.Time) (*mail.Msg, error) {
	mm := mail.NewMsg()
	if err := mm.From(m.From); err != nil {
		return nil, fmt.Errorf("mail from %q: %w", m.From, err)
	}
	if err := mm.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail to %q: %w", msg.To, err)
	}
	mm.Subject(headerSafe.Replace(msg.Subject))
	mm.SetDateWithValue(now)
	mm.SetBodyString(mail.TypeTextPlain, msg.Body)
	return mm, nil
}

var headerSafe = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func (m *SMTPMailer) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// LogMailer writes messages to the log instead of sending them. Used when
// no SMTP host is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return errors.New("mail: empty recipient")
	}
	m.Logger.Info("mail_not_sent_dev_mode", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
