package mailer

import (
	"fmt"
	"strings"

	"frly/pkg/config"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Sender 邮件发送接口（投递为尽力而为，失败由调用方记录日志）
type Sender interface {
	SendHTML(to, subject, html string) error
}

// SMTPSender 基于SMTP的发送实现
type SMTPSender struct {
	addr     string
	username string
	password string
	from     string
}

// NewSMTPSender 创建SMTP发送器
func NewSMTPSender(cfg *config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
	}
}

// SendHTML 发送HTML邮件
func (s *SMTPSender) SendHTML(to, subject, html string) error {
	var msg strings.Builder
	msg.WriteString("From: " + s.from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(html)

	var auth sasl.Client
	if s.username != "" {
		auth = sasl.NewPlainClient("", s.username, s.password)
	}

	return smtp.SendMail(s.addr, auth, s.from, []string{to}, strings.NewReader(msg.String()))
}
