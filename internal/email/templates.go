package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// ContactForm is a submitted contact form
type ContactForm struct {
	Name    string
	Email   string
	Subject string
	Message string
}

var notificationHTML = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333;">
	<h2>New message from the {{.Site}} contact form</h2>
	<p><strong>From:</strong> {{.Form.Name}} &lt;{{.Form.Email}}&gt;</p>
	<p><strong>Subject:</strong> {{.Form.Subject}}</p>
	<p style="white-space: pre-wrap;">{{.Form.Message}}</p>
</body>
</html>`))

var acknowledgementHTML = template.Must(template.New("ack").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333;">
	<p>Hi {{.Form.Name}},</p>
	{{if .AutoReply}}<p style="white-space: pre-wrap;">{{.AutoReply}}</p>{{else}}<p>Thanks for reaching out to {{.Site}}. We received your message and will get back to you soon.</p>{{end}}
	<hr>
	<p style="color: #999; font-size: 12px;">Your message: {{.Form.Subject}}</p>
</body>
</html>`))

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ContactNotification is sent to the site's inbox; replies go to the sender
func ContactNotification(site, recipient string, form ContactForm) (Message, error) {
	html, err := render(notificationHTML, struct {
		Site string
		Form ContactForm
	}{site, form})
	if err != nil {
		return Message{}, fmt.Errorf("render notification: %w", err)
	}

	text := fmt.Sprintf("New message from the %s contact form\n\nFrom: %s <%s>\nSubject: %s\n\n%s\n",
		site, form.Name, form.Email, form.Subject, form.Message)

	return Message{
		Template: "contact_notification",
		To:       []string{recipient},
		ReplyTo:  []string{form.Email},
		Subject:  fmt.Sprintf("[%s] %s", site, oneLine(form.Subject)),
		Text:     text,
		HTML:     html,
	}, nil
}

// ContactAcknowledgement confirms receipt to the sender
func ContactAcknowledgement(site, subject, autoReply string, form ContactForm) (Message, error) {
	html, err := render(acknowledgementHTML, struct {
		Site      string
		AutoReply string
		Form      ContactForm
	}{site, autoReply, form})
	if err != nil {
		return Message{}, fmt.Errorf("render acknowledgement: %w", err)
	}

	body := autoReply
	if body == "" {
		body = fmt.Sprintf("Thanks for reaching out to %s. We received your message and will get back to you soon.", site)
	}
	if subject == "" {
		subject = "We received your message"
	}

	return Message{
		Template: "contact_acknowledgement",
		To:       []string{form.Email},
		Subject:  oneLine(subject),
		Text:     fmt.Sprintf("Hi %s,\n\n%s\n", form.Name, body),
		HTML:     html,
	}, nil
}

// oneLine strips line breaks so user input cannot inject headers
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
