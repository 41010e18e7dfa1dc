package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"sendloop/mailer"
	"sendloop/models"
	"sendloop/queue"
	"sendloop/utils"
)

// CampaignJobPayload is the send-campaign queue contract.
type CampaignJobPayload struct {
	CampaignID  uint     `json:"campaignId" validate:"required"`
	FromAccount string   `json:"fromAccount" validate:"required"`
	Subject     string   `json:"subject" validate:"required"`
	Body        string   `json:"body"`
	Recipients  []string `json:"recipients" validate:"required,min=1,dive,email"`
	UserID      uint     `json:"userId" validate:"required"`
}

// CampaignWorker fans a campaign job out to its recipients. One
// recipient's failure is recorded as a bounce and must not abort the
// batch; only uncaught errors (tracking writes, the final status
// update) propagate into the queue's retry policy. A retried job
// re-sends recipients that already succeeded, since tracking rows are
// append-only with no idempotency key.
type CampaignWorker struct {
	DB     *gorm.DB
	Mailer mailer.Mailer
	Logger *logrus.Logger
}

func NewCampaignWorker(db *gorm.DB, m mailer.Mailer, logger *logrus.Logger) *CampaignWorker {
	return &CampaignWorker{
		DB:     db,
		Mailer: m,
		Logger: logger,
	}
}

func (cw *CampaignWorker) Handle(ctx context.Context, job *queue.Job) error {
	var p CampaignJobPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("malformed campaign job payload: %w", err)
	}
	if err := utils.ValidateStruct(p); err != nil {
		return fmt.Errorf("invalid campaign job payload: %w", err)
	}

	log := cw.Logger.WithFields(logrus.Fields{
		"campaign_id": p.CampaignID,
		"recipients":  len(p.Recipients),
	})
	log.Info("Processing campaign job")

	var sent, bounced int
	for _, recipient := range p.Recipients {
		tracking := models.EmailTracking{
			UserID:         p.UserID,
			CampaignID:     utils.Pointer(p.CampaignID),
			RecipientEmail: recipient,
		}

		messageID, err := cw.Mailer.Send(mailer.Email{
			From:    p.FromAccount,
			To:      recipient,
			Subject: p.Subject,
			Body:    p.Body,
		})
		if err != nil {
			log.WithError(err).WithField("recipient", recipient).Warn("Send failed, recording bounce")
			tracking.Status = models.TrackingStatusBounced
			tracking.BouncedAt = utils.Pointer(time.Now())
			tracking.ErrorMessage = err.Error()
			bounced++
		} else {
			tracking.Status = models.TrackingStatusSent
			tracking.MessageID = messageID
			sent++
		}

		if err := cw.DB.Create(&tracking).Error; err != nil {
			return fmt.Errorf("failed to record tracking for %s: %w", recipient, err)
		}
	}

	err := cw.DB.Model(&models.Campaign{}).
		Where("id = ?", p.CampaignID).
		Updates(map[string]interface{}{
			"status":       models.CampaignStatusCompleted,
			"completed_at": time.Now(),
			"sent_count":   gorm.Expr("sent_count + ?", sent),
			"bounce_count": gorm.Expr("bounce_count + ?", bounced),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to complete campaign %d: %w", p.CampaignID, err)
	}

	log.WithFields(logrus.Fields{"sent": sent, "bounced": bounced}).Info("Campaign completed")
	return nil
}
