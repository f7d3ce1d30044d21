package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"taskmaster/internal/models"
)

// Message is an OTP mail as it travels from the API to the sender.
type Message struct {
	To      string        `json:"to"`
	Code    string        `json:"code"`
	Purpose string        `json:"purpose"`
	Expiry  time.Duration `json:"expiry"`
}

const (
	subjectWelcome = "Welcome to TaskMaster - Verify your email"
	subjectLogin   = "TaskMaster - Your login code"
)

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>TaskMaster - Verification Code</title>
  </head>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background: #667eea; padding: 30px; text-align: center; border-radius: 10px 10px 0 0;">
      <h1 style="color: white; margin: 0; font-size: 28px;">TaskMaster</h1>
    </div>
    <div style="background: #f8f9fa; padding: 30px; border-radius: 0 0 10px 10px; border: 1px solid #e9ecef;">
      {{if .Welcome}}
      <h2>Welcome to TaskMaster!</h2>
      <p>We're excited to have you on board. Please verify your email address to get started.</p>
      {{else}}
      <h2>Welcome back!</h2>
      <p>Here's your login code for TaskMaster.</p>
      {{end}}
      <div style="background: white; padding: 25px; margin: 25px 0; border-radius: 8px; text-align: center; border: 2px solid #667eea;">
        <p style="margin: 0 0 15px 0; font-size: 16px; color: #666;">Your verification code is:</p>
        <h1 style="font-size: 36px; color: #667eea; letter-spacing: 8px; margin: 0; font-weight: bold;">{{.Code}}</h1>
      </div>
      <p style="color: #666; font-size: 14px; margin: 20px 0;">This code will expire in {{.Minutes}} minutes.</p>
      <p style="color: #666; font-size: 14px;">If you didn't request this code, please ignore this email.</p>
      <hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
      <p style="color: #999; font-size: 12px; text-align: center;">
        This email was sent to {{.To}}.<br>
        TaskMaster - Organize your tasks, achieve your goals.
      </p>
    </div>
  </body>
</html>
`))

// Render returns the subject and HTML body for msg.
func Render(msg Message) (subject, body string, err error) {
	const op = "mail.Render"

	welcome := msg.Purpose == models.MailPurposeWelcome

	subject = subjectLogin
	if welcome {
		subject = subjectWelcome
	}

	minutes := int(msg.Expiry.Minutes())
	if minutes < 1 {
		minutes = 1
	}

	var buf bytes.Buffer
	err = otpTemplate.Execute(&buf, struct {
		Welcome bool
		Code    string
		To      string
		Minutes int
	}{
		Welcome: welcome,
		Code:    msg.Code,
		To:      msg.To,
		Minutes: minutes,
	})
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	return subject, buf.String(), nil
}
