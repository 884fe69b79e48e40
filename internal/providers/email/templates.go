package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var defaultSubjects = map[string]string{
	"new_enquiry":        "New enquiry in your agency",
	"new_direct_message": "You have a new message",
}

// Render executes the named template and resolves its subject. A "subject"
// entry in data overrides the default.
func Render(templateName string, data map[string]any) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, templateName+".html", data); err != nil {
		return "", "", fmt.Errorf("render template %s: %w", templateName, err)
	}

	subject = defaultSubjects[templateName]
	if s, ok := data["subject"].(string); ok && s != "" {
		subject = s
	}
	if subject == "" {
		subject = "Notification"
	}
	return subject, buf.String(), nil
}
