package mail

import (
	"bytes"
	"fmt"
	"html/template"
	neturl "net/url"

	"github.com/mx-space/identity/internal/models"
)

// Notifier builds and sends the identity emails. The opaque secret goes into
// the emailed link only; stores keep its digest.
type Notifier struct {
	sender  *Sender
	baseURL string
}

func NewNotifier(sender *Sender, baseURL string) *Notifier {
	return &Notifier{sender: sender, baseURL: baseURL}
}

var verifyEmailTpl = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#333">邮箱验证</h2>
  <p>{{.Name}}，欢迎！请点击下方按钮完成邮箱验证：</p>
  <p style="margin-top:24px">
    <a href="{{.Link}}" style="background:#4f46e5;color:#fff;padding:8px 16px;text-decoration:none;border-radius:4px">验证邮箱</a>
  </p>
  <p style="color:#999;font-size:12px">链接 24 小时内有效。如果不是您本人操作，请忽略此邮件。</p>
</div>
</body>
</html>`))

var resetPasswordTpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#333">重置密码</h2>
  <p>{{.Name}}，我们收到了重置密码的请求。请点击下方按钮设置新密码：</p>
  <p style="margin-top:24px">
    <a href="{{.Link}}" style="background:#4f46e5;color:#fff;padding:8px 16px;text-decoration:none;border-radius:4px">重置密码</a>
  </p>
  <p style="color:#999;font-size:12px">链接 1 小时内有效。如果不是您本人操作，请忽略此邮件，您的密码不会改变。</p>
</div>
</body>
</html>`))

// SendVerificationEmail mails the email-verification link.
func (n *Notifier) SendVerificationEmail(user *models.UserModel, secret string) error {
	return n.render(user, verifyEmailTpl, "验证你的邮箱", "/verify-email", secret)
}

// SendPasswordResetEmail mails the password-reset link.
func (n *Notifier) SendPasswordResetEmail(user *models.UserModel, secret string) error {
	return n.render(user, resetPasswordTpl, "重置密码", "/reset-password", secret)
}

func (n *Notifier) render(user *models.UserModel, tpl *template.Template, subject, path, secret string) error {
	link := fmt.Sprintf("%s%s?token=%s", n.baseURL, path, neturl.QueryEscape(secret))

	name := user.Name
	if name == "" {
		name = user.Email
	}

	var body bytes.Buffer
	if err := tpl.Execute(&body, map[string]string{"Name": name, "Link": link}); err != nil {
		return err
	}
	return n.sender.Send(Message{
		To:      []string{user.Email},
		Subject: subject,
		HTML:    body.String(),
	})
}
