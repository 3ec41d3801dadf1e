package notify

// Notifier 定义邮件发送接口。
type Notifier interface {
	// Send 渲染模板并发送一封邮件。
	//
	// 参数:
	//   to: 接收邮箱
	//   subject: 邮件主题
	//   templateID: 模板 ID (如 "email-verification")
	//   data: 模板变量
	Send(to string, subject string, templateID string, data map[string]string) error
}
