package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"sendloop/mailer"
	"sendloop/models"
	"sendloop/queue"
	"sendloop/utils"
)

// SequenceJobPayload is the send-sequence-step queue contract. The job
// re-enqueues itself with CurrentStep incremented and a delay until the
// sequence runs out of steps for this recipient.
type SequenceJobPayload struct {
	SequenceID     uint   `json:"sequenceId" validate:"required"`
	RecipientEmail string `json:"recipientEmail" validate:"required,email"`
	CurrentStep    int    `json:"currentStep" validate:"required,gt=0"`
	UserID         uint   `json:"userId" validate:"required"`
}

// SequenceWorker walks one recipient through a drip sequence, one step
// per job. Missing sequence or step data fails the job; a send failure
// records a bounce and ends the recipient's run without a retry,
// mirroring the per-recipient isolation of campaign sends.
type SequenceWorker struct {
	DB     *gorm.DB
	Mailer mailer.Mailer
	Steps  queue.Enqueuer
	Logger *logrus.Logger
}

func NewSequenceWorker(db *gorm.DB, m mailer.Mailer, steps queue.Enqueuer, logger *logrus.Logger) *SequenceWorker {
	return &SequenceWorker{
		DB:     db,
		Mailer: m,
		Steps:  steps,
		Logger: logger,
	}
}

func (sw *SequenceWorker) Handle(ctx context.Context, job *queue.Job) error {
	var p SequenceJobPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("malformed sequence job payload: %w", err)
	}
	if err := utils.ValidateStruct(p); err != nil {
		return fmt.Errorf("invalid sequence job payload: %w", err)
	}

	log := sw.Logger.WithFields(logrus.Fields{
		"sequence_id": p.SequenceID,
		"recipient":   p.RecipientEmail,
		"step":        p.CurrentStep,
	})

	var sequence models.Sequence
	if err := sw.DB.First(&sequence, p.SequenceID).Error; err != nil {
		return fmt.Errorf("sequence %d not found: %w", p.SequenceID, err)
	}

	var step models.SequenceStep
	err := sw.DB.Where("sequence_id = ? AND step_number = ?", p.SequenceID, p.CurrentStep).
		First(&step).Error
	if err != nil {
		return fmt.Errorf("step %d of sequence %d not found: %w", p.CurrentStep, p.SequenceID, err)
	}

	tracking := models.EmailTracking{
		UserID:         p.UserID,
		SequenceID:     utils.Pointer(p.SequenceID),
		StepNumber:     p.CurrentStep,
		RecipientEmail: p.RecipientEmail,
	}

	messageID, err := sw.Mailer.Send(mailer.Email{
		From:    sequence.FromAccount,
		To:      p.RecipientEmail,
		Subject: step.Subject,
		Body:    step.Body,
	})
	if err != nil {
		log.WithError(err).Warn("Step send failed, ending sequence for recipient")
		tracking.Status = models.TrackingStatusBounced
		tracking.BouncedAt = utils.Pointer(time.Now())
		tracking.ErrorMessage = err.Error()
		if derr := sw.DB.Create(&tracking).Error; derr != nil {
			return fmt.Errorf("failed to record bounce: %w", derr)
		}
		return nil
	}

	tracking.Status = models.TrackingStatusSent
	tracking.MessageID = messageID
	if err := sw.DB.Create(&tracking).Error; err != nil {
		return fmt.Errorf("failed to record tracking: %w", err)
	}

	if err := sw.DB.Model(&step).Update("sent_count", gorm.Expr("sent_count + ?", 1)).Error; err != nil {
		return fmt.Errorf("failed to update step counters: %w", err)
	}

	var next models.SequenceStep
	err = sw.DB.Where("sequence_id = ? AND step_number = ?", p.SequenceID, p.CurrentStep+1).
		First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Info("Sequence completed for recipient")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up next step: %w", err)
	}

	delay := utils.StepDelay(next.DelayAmount, next.DelayUnit)
	nextPayload := SequenceJobPayload{
		SequenceID:     p.SequenceID,
		RecipientEmail: p.RecipientEmail,
		CurrentStep:    p.CurrentStep + 1,
		UserID:         p.UserID,
	}
	if err := sw.Steps.Enqueue(ctx, nextPayload, queue.WithDelay(delay)); err != nil {
		return fmt.Errorf("failed to schedule step %d: %w", p.CurrentStep+1, err)
	}

	log.WithField("delay", delay.String()).Info("Scheduled next sequence step")
	return nil
}
