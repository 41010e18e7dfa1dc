package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"sendloop/models"
	"sendloop/queue"
	"sendloop/utils"
	"sendloop/worker"
)

type CampaignController struct {
	DB            *gorm.DB
	Logger        *logrus.Logger
	CampaignQueue queue.Enqueuer
}

func NewCampaignController(db *gorm.DB, campaignQueue queue.Enqueuer, logger *logrus.Logger) *CampaignController {
	return &CampaignController{
		DB:            db,
		Logger:        logger,
		CampaignQueue: campaignQueue,
	}
}

type CreateCampaignRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	FromAccount string     `json:"from_account" validate:"required"`
	Subject     string     `json:"subject" validate:"required"`
	Body        string     `json:"body"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input CreateCampaignRequest
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

	campaign := models.Campaign{
		UserID:      user.ID,
		Name:        input.Name,
		FromAccount: input.FromAccount,
		Subject:     input.Subject,
		Body:        input.Body,
		ScheduledAt: input.ScheduledAt,
		Status:      models.CampaignStatusPending,
	}

	if err := cc.DB.Create(&campaign).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create campaign",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(campaign)
}

func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}
	return c.JSON(campaign)
}

type LaunchCampaignRequest struct {
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
}

// LaunchCampaign enqueues the campaign send job. When the campaign is
// scheduled for the future the job is enqueued with a delay and the
// campaign parked as scheduled; otherwise it goes active immediately.
func (cc *CampaignController) LaunchCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	// Anything past pending already has a job enqueued
	if campaign.Status != models.CampaignStatusPending {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Campaign already launched",
		})
	}

	var input LaunchCampaignRequest
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

	var delay time.Duration
	status := models.CampaignStatusActive
	if campaign.ScheduledAt != nil && campaign.ScheduledAt.After(time.Now()) {
		delay = time.Until(*campaign.ScheduledAt)
		status = models.CampaignStatusScheduled
	}

	payload := worker.CampaignJobPayload{
		CampaignID:  campaign.ID,
		FromAccount: campaign.FromAccount,
		Subject:     campaign.Subject,
		Body:        campaign.Body,
		Recipients:  input.Recipients,
		UserID:      user.ID,
	}
	if err := cc.CampaignQueue.Enqueue(c.Context(), payload, queue.WithDelay(delay)); err != nil {
		cc.Logger.WithError(err).Error("Failed to enqueue campaign job")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to enqueue campaign",
		})
	}

	err := cc.DB.Model(&campaign).Updates(map[string]interface{}{
		"status":           status,
		"started_at":       time.Now(),
		"total_recipients": len(input.Recipients),
	}).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update campaign status",
		})
	}

	cc.Logger.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"recipients":  len(input.Recipients),
		"delay":       delay.String(),
	}).Info("Campaign launched")

	return c.JSON(fiber.Map{
		"message": "Campaign launched",
		"status":  status,
	})
}
