package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/marniemm/jobsvc/internal/config"
)

// SMTPMailer delivers mail over SMTP with PLAIN auth. Attachments are sent
// base64-encoded in a multipart/mixed body.
type SMTPMailer struct {
	cfg config.EmailConfig
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(_ context.Context, email Email) error {
	msg, err := buildMessage(email)
	if err != nil {
		return fmt.Errorf("build email message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)
	}

	recipients := append(append([]string{}, email.To...), email.CC...)
	if err := smtp.SendMail(addr, auth, email.From, recipients, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func buildMessage(email Email) ([]byte, error) {
	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", email.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(email.To, ", "))
	if len(email.CC) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", strings.Join(email.CC, ", "))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mp.Boundary())

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := mp.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(email.Body)); err != nil {
		return nil, err
	}

	for _, a := range email.Attachments {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", a.MIMEType)
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
		part, err := mp.CreatePart(header)
		if err != nil {
			return nil, err
		}
		enc := base64.NewEncoder(base64.StdEncoding, part)
		if _, err := enc.Write(a.Data); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	}

	if err := mp.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
