package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"sendloop/models"
	"sendloop/queue"
	"sendloop/utils"
	"sendloop/worker"
)

type SequenceController struct {
	DB            *gorm.DB
	Logger        *logrus.Logger
	SequenceQueue queue.Enqueuer
}

func NewSequenceController(db *gorm.DB, sequenceQueue queue.Enqueuer, logger *logrus.Logger) *SequenceController {
	return &SequenceController{
		DB:            db,
		Logger:        logger,
		SequenceQueue: sequenceQueue,
	}
}

type SequenceStepInput struct {
	Subject     string `json:"subject" validate:"required"`
	Body        string `json:"body"`
	DelayAmount int    `json:"delay_amount" validate:"min=0"`
	DelayUnit   string `json:"delay_unit" validate:"required,oneof=hours days"`
}

type CreateSequenceRequest struct {
	Name        string              `json:"name" validate:"required,max=200"`
	FromAccount string              `json:"from_account" validate:"required"`
	Steps       []SequenceStepInput `json:"steps" validate:"required,min=1,dive"`
}

// CreateSequence stores a sequence and its steps. Step numbers are
// assigned from the array order, 1-based and contiguous.
func (sc *SequenceController) CreateSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input CreateSequenceRequest
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

	sequence := models.Sequence{
		UserID:      user.ID,
		Name:        input.Name,
		FromAccount: input.FromAccount,
		Status:      "active",
	}
	for i, step := range input.Steps {
		sequence.Steps = append(sequence.Steps, models.SequenceStep{
			StepNumber:  i + 1,
			Subject:     step.Subject,
			Body:        step.Body,
			DelayAmount: step.DelayAmount,
			DelayUnit:   step.DelayUnit,
		})
	}

	if err := sc.DB.Create(&sequence).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create sequence",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(sequence)
}

func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var sequence models.Sequence
	err := sc.DB.Preload("Steps").
		Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&sequence).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}
	return c.JSON(sequence)
}

type EnrollRequest struct {
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
}

// EnrollRecipients starts each recipient at step 1 of the sequence.
// Subsequent steps are scheduled by the sequence worker as each step
// completes.
func (sc *SequenceController) EnrollRecipients(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&sequence).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	var firstStep models.SequenceStep
	if err := sc.DB.Where("sequence_id = ? AND step_number = ?", sequence.ID, 1).First(&firstStep).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Sequence has no steps",
		})
	}

	var input EnrollRequest
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

	for _, recipient := range input.Recipients {
		payload := worker.SequenceJobPayload{
			SequenceID:     sequence.ID,
			RecipientEmail: recipient,
			CurrentStep:    1,
			UserID:         user.ID,
		}
		if err := sc.SequenceQueue.Enqueue(c.Context(), payload); err != nil {
			sc.Logger.WithError(err).WithField("recipient", recipient).Error("Failed to enqueue enrollment")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to enroll recipients",
			})
		}
	}

	sc.Logger.WithFields(logrus.Fields{
		"sequence_id": sequence.ID,
		"recipients":  len(input.Recipients),
	}).Info("Recipients enrolled")

	return c.JSON(fiber.Map{
		"message":  "Recipients enrolled",
		"enrolled": len(input.Recipients),
	})
}
