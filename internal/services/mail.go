package services

import (
	"fmt"
	"html"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer sends owner notifications through SendGrid. A Mailer without an API
// key reports itself disabled and sends nothing.
type Mailer struct {
	apiKey string
	from   string
	appURL string
}

func NewMailer(apiKey, from, appURL string) *Mailer {
	if from == "" {
		from = "noreply@databooks.dev"
	}
	return &Mailer{apiKey: apiKey, from: from, appURL: appURL}
}

func (m *Mailer) Enabled() bool {
	return m != nil && m.apiKey != ""
}

// SendFollowNotification tells a dataset owner that someone started following it.
func (m *Mailer) SendFollowNotification(toEmail, ownerName, followerName, datasetName, datasetID string) error {
	if !m.Enabled() {
		return nil
	}
	from := mail.NewEmail("Databooks", m.from)
	subject := fmt.Sprintf("%s is now following %s", followerName, datasetName)
	to := mail.NewEmail(ownerName, toEmail)
	link := fmt.Sprintf("%s/datasets/%s", m.appURL, datasetID)

	htmlContent := fmt.Sprintf(`
        <div style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f4f4f4; text-align: center;">
			<div style="background-color: #ffffff; border-radius: 8px; padding: 30px; display: inline-block; text-align: center;">
				<h1 style="color: #2c3e50; margin-bottom: 20px;">New follower</h1>
				<p>Hello %s,</p>
				<p><strong>%s</strong> started following your dataset <strong>%s</strong>.</p>
				<a href="%s" style="display: inline-block; background-color: #3498db; color: #ffffff; text-decoration: none; padding: 12px 24px; border-radius: 4px; font-weight: bold; margin-top: 20px;">Open dataset</a>
			</div>
		</div>
        `, html.EscapeString(ownerName), html.EscapeString(followerName), html.EscapeString(datasetName), link)

	plainTextContent := fmt.Sprintf("Hello %s, %s started following your dataset %s: %s", ownerName, followerName, datasetName, link)

	message := mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)
	client := sendgrid.NewSendClient(m.apiKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}
