package mailer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"sendloop/config"
	"sendloop/utils"
)

// Email is one outbound message. From names a provider in the
// registry, not a literal address.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer sends a single email and returns the generated message id.
type Mailer interface {
	Send(email Email) (string, error)
}

// SMTPMailer resolves a transport per send through the provider store.
type SMTPMailer struct {
	Providers *ProviderStore
	Logger    *logrus.Logger
}

func NewSMTPMailer(providers *ProviderStore, logger *logrus.Logger) *SMTPMailer {
	return &SMTPMailer{
		Providers: providers,
		Logger:    logger,
	}
}

// Send delivers one email through the from-account's transport. The
// message carries a uniqueness Message-ID (timestamp plus random
// suffix) so downstream tracking and provider-side threading can
// identify the attempt.
func (sm *SMTPMailer) Send(email Email) (string, error) {
	provider, err := sm.Providers.Get(email.From)
	if err != nil {
		return "", err
	}

	dialer, err := buildDialer(provider)
	if err != nil {
		sm.Logger.WithError(err).WithField("provider", provider.Name).Error("Failed to build transport")
		return "", err
	}

	messageID := generateMessageID(provider.FromEmail)

	body := email.Body
	if config.AppConfig.BaseURL != "" {
		body = utils.InjectTracking(body, config.AppConfig.BaseURL, config.AppConfig.EncryptionKey, messageID)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", provider.FromName, provider.FromEmail))
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	m.SetHeader("Message-ID", messageID)
	m.SetHeader("X-Mailer", "Sendloop/1.0")
	m.SetBody("text/html", body)

	if err := dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("send failed: %w", err)
	}

	sm.Logger.WithFields(logrus.Fields{
		"message_id": messageID,
		"to":         email.To,
		"provider":   provider.Name,
	}).Info("Email sent")

	return messageID, nil
}

// VerifyProvider opens the provider's transport and performs the dial
// handshake, reporting a boolean rather than an error. Used before a
// provider is accepted into the registry.
func VerifyProvider(p Provider) bool {
	dialer, err := buildDialer(p)
	if err != nil {
		return false
	}

	closer, err := dialer.Dial()
	if err != nil {
		return false
	}
	closer.Close()
	return true
}

func generateMessageID(fromEmail string) string {
	domain := "sendloop.local"
	if idx := strings.LastIndex(fromEmail, "@"); idx != -1 {
		domain = fromEmail[idx+1:]
	}
	suffix := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("<%d.%s@%s>", time.Now().UnixNano(), suffix, domain)
}
