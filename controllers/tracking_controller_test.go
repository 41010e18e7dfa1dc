package controller

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"sendloop/config"
	"sendloop/models"
	"sendloop/utils"
)

func init() {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"
}

func trackURL(kind, messageID string) string {
	token := utils.TrackingToken(config.AppConfig.EncryptionKey, messageID)
	return fmt.Sprintf("/track/%s/%s/%s", kind, url.PathEscape(messageID), token)
}

func seedTrackingRow(t *testing.T, db *gorm.DB, messageID string) (models.Campaign, models.EmailTracking) {
	t.Helper()
	campaign := models.Campaign{UserID: 1, Name: "C", FromAccount: "default", Subject: "Hi", Status: models.CampaignStatusCompleted}
	require.NoError(t, db.Create(&campaign).Error)

	row := models.EmailTracking{
		UserID:         1,
		CampaignID:     utils.Pointer(campaign.ID),
		RecipientEmail: "a@example.com",
		Status:         models.TrackingStatusSent,
		MessageID:      messageID,
	}
	require.NoError(t, db.Create(&row).Error)
	return campaign, row
}

func TestTrackOpenStampsOnce(t *testing.T) {
	db := setupTestDB(t)
	messageID := "<100.aa@example.com>"
	campaign, _ := seedTrackingRow(t, db, messageID)

	tc := NewTrackingController(db, testLogger())
	app := newTestApp(createTestUser(t, db))
	app.Get("/track/open/:messageID/:token", tc.TrackOpen)

	resp, err := app.Test(jsonRequest(t, "GET", trackURL("open", messageID), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/gif", resp.Header.Get("Content-Type"))

	var row models.EmailTracking
	require.NoError(t, db.Where("message_id = ?", messageID).First(&row).Error)
	require.NotNil(t, row.OpenedAt)
	firstOpen := *row.OpenedAt

	// Second hit still serves the pixel but does not re-stamp
	resp, err = app.Test(jsonRequest(t, "GET", trackURL("open", messageID), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, db.Where("message_id = ?", messageID).First(&row).Error)
	assert.Equal(t, firstOpen, *row.OpenedAt)

	var updated models.Campaign
	require.NoError(t, db.First(&updated, campaign.ID).Error)
	assert.Equal(t, 1, updated.OpenCount)
}

func TestTrackOpenBadTokenServesPixelOnly(t *testing.T) {
	db := setupTestDB(t)
	messageID := "<101.bb@example.com>"
	seedTrackingRow(t, db, messageID)

	tc := NewTrackingController(db, testLogger())
	app := newTestApp(createTestUser(t, db))
	app.Get("/track/open/:messageID/:token", tc.TrackOpen)

	target := fmt.Sprintf("/track/open/%s/forged-token-12345678", url.PathEscape(messageID))
	resp, err := app.Test(jsonRequest(t, "GET", target, nil))
	require.NoError(t, err)
	// Pixel always served, engagement not recorded
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var row models.EmailTracking
	require.NoError(t, db.Where("message_id = ?", messageID).First(&row).Error)
	assert.Nil(t, row.OpenedAt)
}

func TestTrackClickRedirects(t *testing.T) {
	db := setupTestDB(t)
	messageID := "<102.cc@example.com>"
	campaign, _ := seedTrackingRow(t, db, messageID)

	tc := NewTrackingController(db, testLogger())
	app := newTestApp(createTestUser(t, db))
	app.Get("/track/click/:messageID/:token", tc.TrackClick)

	target := trackURL("click", messageID) + "?url=" + url.QueryEscape("https://example.com/pricing")
	resp, err := app.Test(jsonRequest(t, "GET", target, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com/pricing", resp.Header.Get("Location"))

	var row models.EmailTracking
	require.NoError(t, db.Where("message_id = ?", messageID).First(&row).Error)
	assert.NotNil(t, row.ClickedAt)

	var updated models.Campaign
	require.NoError(t, db.First(&updated, campaign.ID).Error)
	assert.Equal(t, 1, updated.ClickCount)
}

func TestTrackClickBadTokenRedirectsWithoutStamp(t *testing.T) {
	db := setupTestDB(t)
	messageID := "<104.ee@example.com>"
	seedTrackingRow(t, db, messageID)

	tc := NewTrackingController(db, testLogger())
	app := newTestApp(createTestUser(t, db))
	app.Get("/track/click/:messageID/:token", tc.TrackClick)

	target := fmt.Sprintf("/track/click/%s/forged-token-12345678?url=%s",
		url.PathEscape(messageID), url.QueryEscape("https://example.com/pricing"))
	resp, err := app.Test(jsonRequest(t, "GET", target, nil))
	require.NoError(t, err)
	// Recipient still lands on the link, engagement not recorded
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	var row models.EmailTracking
	require.NoError(t, db.Where("message_id = ?", messageID).First(&row).Error)
	assert.Nil(t, row.ClickedAt)
}

func TestTrackClickMissingURL(t *testing.T) {
	db := setupTestDB(t)
	messageID := "<103.dd@example.com>"
	seedTrackingRow(t, db, messageID)

	tc := NewTrackingController(db, testLogger())
	app := newTestApp(createTestUser(t, db))
	app.Get("/track/click/:messageID/:token", tc.TrackClick)

	resp, err := app.Test(jsonRequest(t, "GET", trackURL("click", messageID), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
