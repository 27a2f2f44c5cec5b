package mailer

import (
	"bytes"
	"fmt"
	"text/template"
)

// Account notification templates. Kept deliberately plain: a short text
// body and a minimal HTML variant.

const (
	TemplateWelcome         = "welcome"
	TemplatePasswordChanged = "password_changed"
)

type rendered struct {
	Subject string
	Text    string
	HTML    string
}

var templates = map[string]rendered{
	TemplateWelcome: {
		Subject: "Welcome to Blanjamart",
		Text:    "Hi {{.Username}},\n\nYour account was created successfully. You can now log in with your email or username.\n",
		HTML:    "<p>Hi {{.Username}},</p><p>Your account was created successfully. You can now log in with your email or username.</p>",
	},
	TemplatePasswordChanged: {
		Subject: "Your password was changed",
		Text:    "Hi,\n\nThe password for your account was just changed. If this wasn't you, reset your password immediately.\n",
		HTML:    "<p>Hi,</p><p>The password for your account was just changed. If this wasn't you, reset your password immediately.</p>",
	},
}

func execute(name, body string, data map[string]any) (string, error) {
	t, err := template.New(name).Parse(body)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render produces subject, text and html bodies for a named template.
func Render(name string, data map[string]any) (subject, text, html string, err error) {
	tpl, ok := templates[name]
	if !ok {
		return "", "", "", fmt.Errorf("unknown email template %q", name)
	}
	if text, err = execute(name+"_text", tpl.Text, data); err != nil {
		return "", "", "", err
	}
	if html, err = execute(name+"_html", tpl.HTML, data); err != nil {
		return "", "", "", err
	}
	return tpl.Subject, text, html, nil
}
