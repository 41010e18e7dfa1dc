package controller

import (
	"crypto/subtle"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"sendloop/config"
	"sendloop/models"
	"sendloop/utils"
)

// 1x1 transparent GIF served as the open pixel
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

type TrackingController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewTrackingController(db *gorm.DB, logger *logrus.Logger) *TrackingController {
	return &TrackingController{
		DB:     db,
		Logger: logger,
	}
}

// TrackOpen serves the open pixel and stamps OpenedAt on the first hit.
func (tc *TrackingController) TrackOpen(c *fiber.Ctx) error {
	messageID, ok := tc.verifiedMessageID(c)
	if ok {
		tc.stampFirst(messageID, "opened_at", "open_count")
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store")
	return c.Send(trackingPixel)
}

// TrackClick stamps ClickedAt and redirects to the original URL.
func (tc *TrackingController) TrackClick(c *fiber.Ctx) error {
	target := c.Query("url")
	if target == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing url",
		})
	}

	if messageID, ok := tc.verifiedMessageID(c); ok {
		tc.stampFirst(messageID, "clicked_at", "click_count")
	}

	return c.Redirect(target, fiber.StatusFound)
}

func (tc *TrackingController) verifiedMessageID(c *fiber.Ctx) (string, bool) {
	messageID, err := url.PathUnescape(c.Params("messageID"))
	if err != nil {
		return "", false
	}
	expected := utils.TrackingToken(config.AppConfig.EncryptionKey, messageID)
	if subtle.ConstantTimeCompare([]byte(c.Params("token")), []byte(expected)) != 1 {
		return "", false
	}
	return messageID, true
}

// stampFirst sets the engagement timestamp once per tracking row and
// bumps the campaign counter on the first hit only.
func (tc *TrackingController) stampFirst(messageID, column, counter string) {
	var tracking models.EmailTracking
	err := tc.DB.Where("message_id = ? AND "+column+" IS NULL", messageID).First(&tracking).Error
	if err != nil {
		return
	}

	if err := tc.DB.Model(&tracking).Update(column, time.Now()).Error; err != nil {
		tc.Logger.WithError(err).Error("Failed to record engagement")
		return
	}

	if tracking.CampaignID != nil {
		tc.DB.Model(&models.Campaign{}).
			Where("id = ?", *tracking.CampaignID).
			Update(counter, gorm.Expr(counter+" + ?", 1))
	}
}
