package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/config"

	"gopkg.in/gomail.v2"
)

// TemplateEmailVerification 邮箱验证模板 ID。
const TemplateEmailVerification = "email-verification"

// EmailNotifier 通过 SMTP 发送模板邮件。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建一个新的邮件发送器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// Send 渲染模板并发送邮件。SMTP 未配置时跳过并记录日志，不返回错误，
// 避免本地开发环境因缺少邮件服务而阻塞注册流程。
func (n *EmailNotifier) Send(to string, subject string, templateID string, data map[string]string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Warn("email config missing, skip delivery",
			slog.String("to", to), slog.String("template_id", templateID))
		return nil
	}
	if strings.TrimSpace(to) == "" {
		n.logger.Warn("email recipient empty, skip delivery")
		return nil
	}

	body, err := renderTemplate(templateID, data)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("email sent", slog.String("to", to), slog.String("template_id", templateID))
	return nil
}

// renderTemplate 根据模板 ID 生成 HTML 正文。
func renderTemplate(templateID string, data map[string]string) (string, error) {
	switch templateID {
	case TemplateEmailVerification:
		return buildVerificationBody(data["firstName"], data["verifyUrl"]), nil
	default:
		return "", fmt.Errorf("unknown email template: %s", templateID)
	}
}

func buildVerificationBody(firstName, verifyURL string) string {
	if firstName == "" {
		firstName = "there"
	}

	template := `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8" />
<style>
  body { font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937; }
  .card { max-width: 520px; margin: 24px auto; background: #ffffff; border-radius: 12px; overflow: hidden; border: 1px solid #e5e7eb; }
  .header { background: #0f172a; color: #ffffff; padding: 16px 20px; font-size: 16px; font-weight: bold; }
  .content { padding: 20px; }
  .cta { display: inline-block; padding: 12px 20px; background: #22c55e; color: #fff; text-decoration: none; border-radius: 8px; font-weight: bold; }
  .footer { margin-top: 20px; font-size: 12px; color: #6b7280; }
</style>
</head>
<body>
  <div class="card">
    <div class="header">AI Tutor Platform</div>
    <div class="content">
      <p>Hi %s,</p>
      <p>Welcome! Please confirm your email address to activate your account.</p>
      <div style="text-align:center; margin: 16px 0;">
        <a class="cta" href="%s" target="_blank">Verify my email</a>
      </div>
      <div class="footer">This link expires in 24 hours. If you did not sign up, you can safely ignore this email.</div>
    </div>
  </div>
</body>
</html>`

	return fmt.Sprintf(template, firstName, verifyURL)
}
