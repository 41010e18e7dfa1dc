package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"sendloop/mailer"
	"sendloop/utils"
)

type ProviderController struct {
	Providers *mailer.ProviderStore
	Logger    *logrus.Logger
}

func NewProviderController(providers *mailer.ProviderStore, logger *logrus.Logger) *ProviderController {
	return &ProviderController{
		Providers: providers,
		Logger:    logger,
	}
}

type AddProviderRequest struct {
	Name      string `json:"name" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=smtp gmail"`
	FromEmail string `json:"from_email" validate:"required,email"`
	FromName  string `json:"from_name"`

	SMTPHost string `json:"smtp_host"`
	SMTPPort int    `json:"smtp_port"`
	Secure   bool   `json:"secure"`
	Username string `json:"smtp_username"`
	Password string `json:"smtp_password"`

	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`

	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"imap_password"`
}

// AddProvider registers a from-account at runtime. The registry runs
// the transport verification handshake and refuses providers that fail
// it. Additions are process-local and lost on restart.
func (pc *ProviderController) AddProvider(c *fiber.Ctx) error {
	var input AddProviderRequest
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	provider := mailer.Provider{
		Name:         input.Name,
		Type:         input.Type,
		FromEmail:    input.FromEmail,
		FromName:     input.FromName,
		SMTPHost:     input.SMTPHost,
		SMTPPort:     input.SMTPPort,
		Secure:       input.Secure,
		Username:     input.Username,
		Password:     input.Password,
		ClientID:     input.ClientID,
		ClientSecret: input.ClientSecret,
		RefreshToken: input.RefreshToken,
		IMAPHost:     input.IMAPHost,
		IMAPPort:     input.IMAPPort,
		IMAPUsername: input.IMAPUsername,
		IMAPPassword: input.IMAPPassword,
	}

	if err := pc.Providers.Add(provider); err != nil {
		pc.Logger.WithError(err).WithField("provider", input.Name).Warn("Provider registration refused")
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Provider registered",
	})
}

func (pc *ProviderController) ListProviders(c *fiber.Ctx) error {
	return c.JSON(pc.Providers.List())
}

// VerifyAddress runs the single-address deliverability check.
func (pc *ProviderController) VerifyAddress(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing email parameter",
		})
	}

	result, err := utils.VerifyEmailAddress(email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Verification failed",
		})
	}
	return c.JSON(result)
}
