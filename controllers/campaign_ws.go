package controller

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"sendloop/models"
)

type campaignProgress struct {
	Status          string `json:"status"`
	TotalRecipients int    `json:"total_recipients"`
	SentCount       int    `json:"sent_count"`
	BounceCount     int    `json:"bounce_count"`
	Percent         int    `json:"percent"`
}

// HandleCampaignProgressWS streams a campaign's denormalized counters
// to the client until the campaign completes or the client goes away.
func (cc *CampaignController) HandleCampaignProgressWS(c *websocket.Conn) {
	defer c.Close()

	campaignID := c.Params("id")
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		var campaign models.Campaign
		if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				c.WriteJSON(map[string]string{"error": "campaign not found"})
			}
			return
		}

		progress := campaignProgress{
			Status:          campaign.Status,
			TotalRecipients: campaign.TotalRecipients,
			SentCount:       campaign.SentCount,
			BounceCount:     campaign.BounceCount,
		}
		if campaign.TotalRecipients > 0 {
			progress.Percent = (campaign.SentCount + campaign.BounceCount) * 100 / campaign.TotalRecipients
		}

		if err := c.WriteJSON(progress); err != nil {
			return
		}
		if campaign.Status == models.CampaignStatusCompleted {
			return
		}
	}
}
