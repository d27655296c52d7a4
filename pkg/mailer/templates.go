package mailer

import "strings"

// 邮件模板，占位符用 {{NAME}} 形式，渲染时整体替换

// GroupInviteTemplate 群组邀请邮件
const GroupInviteTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>你好 {{FIRST_NAME}}，</h2>
  <p>{{INVITER_NAME}} 邀请你加入群组 <strong>{{GROUP_NAME}}</strong>。</p>
  <p>
    <a href="{{INVITE_ACCEPT_LINK}}" style="background:#4f46e5;color:#fff;padding:10px 20px;border-radius:6px;text-decoration:none;">接受邀请</a>
    &nbsp;
    <a href="{{INVITE_DECLINE_LINK}}" style="color:#666;">拒绝</a>
  </p>
  <p style="color:#999;font-size:12px;">该邀请7天内有效，过期后需要管理员重新发送。</p>
</body>
</html>`

// PasswordResetTemplate 密码重置邮件
const PasswordResetTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>你好 {{FIRST_NAME}}，</h2>
  <p>我们收到了重置你账号密码的请求。点击下面的链接设置新密码：</p>
  <p>
    <a href="{{RESET_LINK}}" style="background:#4f46e5;color:#fff;padding:10px 20px;border-radius:6px;text-decoration:none;">重置密码</a>
  </p>
  <p style="color:#999;font-size:12px;">链接30分钟内有效。如果不是你本人操作，请忽略此邮件。</p>
</body>
</html>`

// Render 渲染模板，vars的键不带大括号
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
