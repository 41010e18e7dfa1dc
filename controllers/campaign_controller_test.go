package controller

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sendloop/models"
	"sendloop/utils"
	"sendloop/worker"
)

func TestCreateCampaign(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	fe := &fakeEnqueuer{}
	cc := NewCampaignController(db, fe, testLogger())

	app := newTestApp(user)
	app.Post("/campaigns", cc.CreateCampaign)

	req := jsonRequest(t, "POST", "/campaigns", map[string]interface{}{
		"name":         "Spring launch",
		"from_account": "default",
		"subject":      "We are live",
		"body":         "<p>hello</p>",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Campaign
	decodeBody(t, resp, &created)
	assert.Equal(t, user.ID, created.UserID)
	assert.Equal(t, models.CampaignStatusPending, created.Status)

	var count int64
	require.NoError(t, db.Model(&models.Campaign{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateCampaignRejectsMissingFields(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	cc := NewCampaignController(db, &fakeEnqueuer{}, testLogger())

	app := newTestApp(user)
	app.Post("/campaigns", cc.CreateCampaign)

	req := jsonRequest(t, "POST", "/campaigns", map[string]interface{}{
		"name": "No subject",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLaunchCampaignImmediate(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	fe := &fakeEnqueuer{}
	cc := NewCampaignController(db, fe, testLogger())

	campaign := models.Campaign{
		UserID: user.ID, Name: "Launch", FromAccount: "default",
		Subject: "Hi", Status: models.CampaignStatusPending,
	}
	require.NoError(t, db.Create(&campaign).Error)

	app := newTestApp(user)
	app.Post("/campaigns/:id/launch", cc.LaunchCampaign)

	req := jsonRequest(t, "POST", fmt.Sprintf("/campaigns/%d/launch", campaign.ID), map[string]interface{}{
		"recipients": []string{"a@example.com", "b@example.com"},
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, fe.payloads, 1)
	payload, ok := fe.payloads[0].(worker.CampaignJobPayload)
	require.True(t, ok)
	assert.Equal(t, campaign.ID, payload.CampaignID)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, payload.Recipients)
	assert.Zero(t, fe.options[0].Delay)

	var updated models.Campaign
	require.NoError(t, db.First(&updated, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusActive, updated.Status)
	assert.Equal(t, 2, updated.TotalRecipients)
	assert.NotNil(t, updated.StartedAt)
}

func TestLaunchCampaignScheduled(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	fe := &fakeEnqueuer{}
	cc := NewCampaignController(db, fe, testLogger())

	campaign := models.Campaign{
		UserID: user.ID, Name: "Later", FromAccount: "default", Subject: "Hi",
		Status:      models.CampaignStatusPending,
		ScheduledAt: utils.Pointer(time.Now().Add(2 * time.Hour)),
	}
	require.NoError(t, db.Create(&campaign).Error)

	app := newTestApp(user)
	app.Post("/campaigns/:id/launch", cc.LaunchCampaign)

	req := jsonRequest(t, "POST", fmt.Sprintf("/campaigns/%d/launch", campaign.ID), map[string]interface{}{
		"recipients": []string{"a@example.com"},
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, fe.options, 1)
	assert.Greater(t, fe.options[0].Delay, time.Hour)

	var updated models.Campaign
	require.NoError(t, db.First(&updated, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusScheduled, updated.Status)
}

func TestLaunchCampaignRejectsRelaunch(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	fe := &fakeEnqueuer{}
	cc := NewCampaignController(db, fe, testLogger())

	for _, status := range []string{
		models.CampaignStatusScheduled,
		models.CampaignStatusActive,
		models.CampaignStatusCompleted,
	} {
		campaign := models.Campaign{
			UserID: user.ID, Name: "Done " + status, FromAccount: "default",
			Subject: "Hi", Status: status,
		}
		require.NoError(t, db.Create(&campaign).Error)

		app := newTestApp(user)
		app.Post("/campaigns/:id/launch", cc.LaunchCampaign)

		req := jsonRequest(t, "POST", fmt.Sprintf("/campaigns/%d/launch", campaign.ID), map[string]interface{}{
			"recipients": []string{"a@example.com"},
		})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
	assert.Empty(t, fe.payloads)
}

func TestLaunchCampaignRejectsBadRecipients(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	fe := &fakeEnqueuer{}
	cc := NewCampaignController(db, fe, testLogger())

	campaign := models.Campaign{
		UserID: user.ID, Name: "Launch", FromAccount: "default",
		Subject: "Hi", Status: models.CampaignStatusPending,
	}
	require.NoError(t, db.Create(&campaign).Error)

	app := newTestApp(user)
	app.Post("/campaigns/:id/launch", cc.LaunchCampaign)

	for _, recipients := range [][]string{{}, {"not-an-address"}} {
		req := jsonRequest(t, "POST", fmt.Sprintf("/campaigns/%d/launch", campaign.ID), map[string]interface{}{
			"recipients": recipients,
		})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
	assert.Empty(t, fe.payloads)
}

func TestGetCampaignScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db)
	other := models.User{Email: "other@example.com", PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(&other).Error)

	campaign := models.Campaign{UserID: other.ID, Name: "Theirs", FromAccount: "default", Subject: "Hi"}
	require.NoError(t, db.Create(&campaign).Error)

	cc := NewCampaignController(db, &fakeEnqueuer{}, testLogger())
	app := newTestApp(owner)
	app.Get("/campaigns/:id", cc.GetCampaign)

	req := jsonRequest(t, "GET", fmt.Sprintf("/campaigns/%d", campaign.ID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
