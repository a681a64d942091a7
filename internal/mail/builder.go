// internal/mail/builder.go
package mail

import (
	"bytes"
	"fmt"
	"html"
	"mime/multipart"
	"strings"
	"time"

	"github.com/markb/reminderd/internal/reminder"
)

// subjectPrefix marks notification mail in the recipient's inbox.
const subjectPrefix = "Reminder: "

// startDateLayout is a locale-independent long form, e.g.
// "Friday, August 28, 2026 at 9:00 AM".
const startDateLayout = "Monday, January 2, 2006 at 3:04 PM"

// FormatStartDate renders a reminder trigger time for message bodies.
func FormatStartDate(t time.Time) string {
	return t.Format(startDateLayout)
}

// BuildReminderMessage renders the notification for one due reminder.
// It is pure: the same reminder, recipient, sender, and clock reading
// always produce the same message.
func BuildReminderMessage(rem *reminder.Reminder, recipient, sender string, now time.Time) *Message {
	due := FormatStartDate(rem.StartDate)

	var text strings.Builder
	fmt.Fprintf(&text, "%s\r\n\r\n", rem.Title)
	fmt.Fprintf(&text, "Scheduled for: %s\r\n", due)
	if rem.Note != "" {
		fmt.Fprintf(&text, "\r\n%s\r\n", rem.Note)
	}

	var htmlBody strings.Builder
	htmlBody.WriteString("<html><body>\r\n")
	fmt.Fprintf(&htmlBody, "<h2>%s</h2>\r\n", html.EscapeString(rem.Title))
	fmt.Fprintf(&htmlBody, "<p><strong>Scheduled for:</strong> %s</p>\r\n", html.EscapeString(due))
	if rem.Note != "" {
		fmt.Fprintf(&htmlBody,
			"<div style=\"border-left:4px solid #ccc;padding:8px 12px;margin:12px 0;background:#f8f8f8\">%s</div>\r\n",
			html.EscapeString(rem.Note))
	}
	htmlBody.WriteString("</body></html>\r\n")

	return &Message{
		To:         recipient,
		From:       sender,
		Subject:    subjectPrefix + rem.Title,
		BodyText:   text.String(),
		BodyHTML:   htmlBody.String(),
		ReminderID: rem.ID,
		Date:       now,
	}
}

// Encode renders the full wire form of the message: headers plus a
// multipart/alternative body with the text part first and the HTML part
// second, closed by the final boundary marker. All line endings are CRLF.
func (m *Message) Encode() []byte {
	var buf bytes.Buffer

	// multipart.Writer only generates the boundary token here.
	writer := multipart.NewWriter(&buf)
	boundary := writer.Boundary()
	writer.Close()
	buf.Reset()

	fmt.Fprintf(&buf, "From: %s\r\n", m.From)
	fmt.Fprintf(&buf, "To: %s\r\n", m.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n", boundary)
	fmt.Fprintf(&buf, "Date: %s\r\n", m.Date.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "\r\n")

	if m.BodyText != "" {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n")
		fmt.Fprintf(&buf, "\r\n")
		fmt.Fprintf(&buf, "%s\r\n", m.BodyText)
	}

	if m.BodyHTML != "" {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n")
		fmt.Fprintf(&buf, "\r\n")
		fmt.Fprintf(&buf, "%s\r\n", m.BodyHTML)
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes()
}
