package service

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/kiuth/recruitment-api/internal/model"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <div style="background: #1e3a5f; color: #ffffff; padding: 16px 24px;">
    <h2 style="margin: 0;">Kashim Ibrahim University Teaching Hospital</h2>
    <p style="margin: 4px 0 0;">Recruitment Portal</p>
  </div>
  <div style="padding: 24px;">
    <p>Dear {{.FullName}},</p>
    <p>Your application for the position of <strong>{{.Position}}</strong>{{if .Department}} ({{.Department}}){{end}} has been received.</p>
    <p>Your reference number is <strong style="color: #4a9d7e;">{{.ReferenceNumber}}</strong>.
       Keep it safe; you will need it to check your status and at the screening venue.</p>
    <p>Your application slip is attached to this email. Please print it and bring it along with the originals of your documents.</p>
    <p>If this email landed in your spam folder, please mark it as "Not spam" so you receive further updates.</p>
    <p>Regards,<br>KIUTH Recruitment Team</p>
  </div>
</body>
</html>`))

var contactTmpl = template.Must(template.New("contact").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <h3>New contact message</h3>
  <p><strong>From:</strong> {{.Name}} &lt;{{.Email}}&gt;</p>
  <p><strong>Subject:</strong> {{.Subject}}</p>
  <p style="white-space: pre-wrap;">{{.Message}}</p>
</body>
</html>`))

// ConfirmationEmail builds the subject and HTML body sent after a submission
func ConfirmationEmail(a *model.Application) (string, string, error) {
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, a); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}
	return fmt.Sprintf("KIUTH Recruitment: Application Received (%s)", a.ReferenceNumber), buf.String(), nil
}

// ConfirmationSMS is the text sent after a submission
func ConfirmationSMS(a *model.Application) string {
	name := strings.TrimSpace(a.FullName)
	if fields := strings.Fields(name); len(fields) > 0 {
		name = fields[0]
	}
	return fmt.Sprintf("Dear %s, your KIUTH application for %s has been received. Ref: %s. Check your email for your application slip.",
		name, a.Position, a.ReferenceNumber)
}

// ContactEmail forwards a contact form message to the inbox
func ContactEmail(m *model.ContactMessage) (string, string, error) {
	var buf bytes.Buffer
	if err := contactTmpl.Execute(&buf, m); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}
	subject := "Contact form: " + m.Subject
	if strings.TrimSpace(m.Subject) == "" {
		subject = "Contact form message from " + m.Name
	}
	return subject, buf.String(), nil
}
