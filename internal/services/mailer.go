package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ContactMessage is a visitor's message to the owner of a card.
type ContactMessage struct {
	Reference   string
	CardID      string
	OwnerName   string
	OwnerEmail  string
	SenderName  string
	SenderEmail string
	Body        string
}

type Mailer interface {
	SendContactMessage(ctx context.Context, msg ContactMessage) error
}

type SendGridMailer struct {
	APIKey     string
	FromEmail  string
	HTTPClient *http.Client
	Endpoint   string
}

func NewSendGridMailer(apiKey, fromEmail string) *SendGridMailer {
	return &SendGridMailer{
		APIKey:     strings.TrimSpace(apiKey),
		FromEmail:  strings.TrimSpace(fromEmail),
		Endpoint:   "https://api.sendgrid.com/v3/mail/send",
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendGridEmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To         []sendGridEmailAddress `json:"to"`
	Subject    string                 `json:"subject"`
	CustomArgs map[string]string      `json:"custom_args,omitempty"`
}

type sendGridMailSendRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridEmailAddress      `json:"from"`
	ReplyTo          *sendGridEmailAddress     `json:"reply_to,omitempty"`
	Content          []sendGridContent         `json:"content"`
}

// SendContactMessage mails msg to the card owner with Reply-To set to the
// sender, so the owner answers the visitor directly.
func (m *SendGridMailer) SendContactMessage(ctx context.Context, msg ContactMessage) error {
	if m.APIKey == "" {
		return fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if m.FromEmail == "" {
		return fmt.Errorf("missing CONTACT_FROM_EMAIL")
	}
	if msg.OwnerEmail == "" {
		return fmt.Errorf("card owner has no email")
	}

	plain := fmt.Sprintf(
		"Reference: %s\nFrom: %s <%s>\n\n%s\n",
		msg.Reference,
		msg.SenderName,
		msg.SenderEmail,
		msg.Body,
	)

	reqBody := sendGridMailSendRequest{
		Personalizations: []sendGridPersonalization{
			{
				To:         []sendGridEmailAddress{{Email: msg.OwnerEmail, Name: msg.OwnerName}},
				Subject:    fmt.Sprintf("New message from %s via your card", msg.SenderName),
				CustomArgs: map[string]string{"reference": msg.Reference, "card_id": msg.CardID},
			},
		},
		From:    sendGridEmailAddress{Email: m.FromEmail, Name: "ID Card"},
		ReplyTo: &sendGridEmailAddress{Email: msg.SenderEmail, Name: msg.SenderName},
		Content: []sendGridContent{{Type: "text/plain", Value: plain}},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// SendGrid answers 202 Accepted.
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid mail send http %d", resp.StatusCode)
	}
	return nil
}
