package mailer

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"sendloop/utils"
)

// Provider types
const (
	ProviderTypeSMTP  = "smtp"
	ProviderTypeGmail = "gmail"
)

// DefaultProviderName is the registry fallback used when a send names
// an account the registry does not know.
const DefaultProviderName = "default"

// Provider holds the credentials of one from-account.
type Provider struct {
	Name      string `json:"name" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=smtp gmail"`
	FromEmail string `json:"from_email" validate:"required,email"`
	FromName  string `json:"from_name"`

	// SMTP configuration
	SMTPHost string `json:"smtp_host"`
	SMTPPort int    `json:"smtp_port"`
	Secure   bool   `json:"secure"` // implicit TLS instead of STARTTLS
	Username string `json:"smtp_username"`
	Password string `json:"-"` // encrypted while held in the store

	// Gmail OAuth configuration
	ClientID     string `json:"-"`
	ClientSecret string `json:"-"`
	RefreshToken string `json:"-"`

	// IMAP configuration for reply polling
	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"-"`
}

// VerifyFunc reports whether a provider's transport handshake succeeds.
type VerifyFunc func(Provider) bool

// ProviderStore is the in-process provider registry. It is owned by the
// composition root and injected wherever transports are resolved.
// Runtime additions are process-local and lost on restart.
type ProviderStore struct {
	mu        sync.RWMutex
	providers map[string]Provider
	verify    VerifyFunc
	logger    *logrus.Logger
}

func NewProviderStore(verify VerifyFunc, logger *logrus.Logger) *ProviderStore {
	return &ProviderStore{
		providers: make(map[string]Provider),
		verify:    verify,
		logger:    logger,
	}
}

// encryptSecrets encrypts the passwords before the provider is held in
// memory. Transports decrypt on use.
func encryptSecrets(p *Provider) error {
	encrypted, err := utils.Encrypt(p.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt provider password: %w", err)
	}
	p.Password = encrypted

	if p.IMAPPassword != "" {
		encrypted, err = utils.Encrypt(p.IMAPPassword)
		if err != nil {
			return fmt.Errorf("failed to encrypt IMAP password: %w", err)
		}
		p.IMAPPassword = encrypted
	}
	return nil
}

// Seed registers a configuration-sourced provider without the
// verification handshake. Used at process start, before any network is
// assumed reachable.
func (s *ProviderStore) Seed(p Provider) error {
	if err := encryptSecrets(&p); err != nil {
		return err
	}

	s.mu.Lock()
	s.providers[p.Name] = p
	s.mu.Unlock()
	return nil
}

// Add registers a provider at runtime. Registration is refused until
// the verification handshake succeeds.
func (s *ProviderStore) Add(p Provider) error {
	if err := utils.ValidateStruct(p); err != nil {
		return err
	}

	if err := encryptSecrets(&p); err != nil {
		return err
	}

	if !s.verify(p) {
		return fmt.Errorf("provider %q failed verification", p.Name)
	}

	s.mu.Lock()
	s.providers[p.Name] = p
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"provider": p.Name,
		"type":     p.Type,
	}).Info("Registered email provider")
	return nil
}

// Get resolves a named provider, falling back to the default provider
// when the name is unknown.
func (s *ProviderStore) Get(name string) (Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.providers[name]; ok {
		return p, nil
	}
	if p, ok := s.providers[DefaultProviderName]; ok {
		s.logger.WithField("provider", name).Debug("Unknown provider, using default")
		return p, nil
	}
	return Provider{}, fmt.Errorf("no provider %q and no default configured", name)
}

// List returns all registered providers with their secrets blanked.
func (s *ProviderStore) List() []Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Provider, 0, len(s.providers))
	for _, p := range s.providers {
		p.Password = ""
		p.ClientSecret = ""
		p.RefreshToken = ""
		p.IMAPPassword = ""
		out = append(out, p)
	}
	return out
}

// WithIMAP returns the providers that have an IMAP inbox configured.
func (s *ProviderStore) WithIMAP() []Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Provider
	for _, p := range s.providers {
		if p.IMAPHost != "" {
			out = append(out, p)
		}
	}
	return out
}
