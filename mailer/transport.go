package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gopkg.in/gomail.v2"

	"sendloop/utils"
)

const (
	gmailSMTPHost = "smtp.gmail.com"
	gmailSMTPPort = 587

	oauthTimeout = 30 * time.Second
)

// buildDialer resolves a provider into a ready-to-use transport. Gmail
// providers refresh an access token on every call; there is no
// transport caching across sends.
func buildDialer(p Provider) (*gomail.Dialer, error) {
	switch p.Type {
	case ProviderTypeGmail:
		return buildGmailDialer(p)
	default:
		return buildSMTPDialer(p)
	}
}

func buildSMTPDialer(p Provider) (*gomail.Dialer, error) {
	password, err := utils.Decrypt(p.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	d := gomail.NewDialer(p.SMTPHost, p.SMTPPort, p.Username, password)
	d.SSL = p.Secure
	d.TLSConfig = &tls.Config{ServerName: p.SMTPHost}
	return d, nil
}

func buildGmailDialer(p Provider) (*gomail.Dialer, error) {
	conf := &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://mail.google.com/"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), oauthTimeout)
	defer cancel()

	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: p.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("gmail oauth token refresh failed: %w", err)
	}

	d := &gomail.Dialer{
		Host:      gmailSMTPHost,
		Port:      gmailSMTPPort,
		Username:  p.FromEmail,
		Auth:      &xoauth2Auth{username: p.FromEmail, token: token.AccessToken},
		TLSConfig: &tls.Config{ServerName: gmailSMTPHost},
	}
	return d, nil
}

// xoauth2Auth implements the XOAUTH2 SASL mechanism over net/smtp,
// which neither gomail nor the standard library provide.
type xoauth2Auth struct {
	username string
	token    string
}

func (a *xoauth2Auth) Start(_ *smtp.ServerInfo) (string, []byte, error) {
	resp := []byte("user=" + a.username + "\x01auth=Bearer " + a.token + "\x01\x01")
	return "XOAUTH2", resp, nil
}

func (a *xoauth2Auth) Next(_ []byte, more bool) ([]byte, error) {
	if more {
		// The server sent an error challenge; an empty response makes
		// it return the final SMTP error.
		return []byte(""), nil
	}
	return nil, nil
}
