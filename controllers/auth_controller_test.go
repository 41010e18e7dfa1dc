package controller

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sendloop/config"
	"sendloop/models"
)

func setupAuthApp(t *testing.T) *fiber.App {
	t.Helper()
	// Auth handlers go through the config.DB global
	config.DB = setupTestDB(t)

	app := fiber.New()
	app.Post("/auth/register", Register)
	app.Post("/auth/login", Login)
	app.Post("/auth/refresh", RefreshToken)
	return app
}

func TestRegisterAndLogin(t *testing.T) {
	app := setupAuthApp(t)

	resp, err := app.Test(jsonRequest(t, "POST", "/auth/register", map[string]string{
		"email":    "new@example.com",
		"password": "correct-horse",
		"name":     "New User",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var auth AuthResponse
	decodeBody(t, resp, &auth)
	assert.NotEmpty(t, auth.AccessToken)
	assert.NotEmpty(t, auth.RefreshToken)
	require.NotNil(t, auth.User)
	assert.Equal(t, "new@example.com", auth.User.Email)

	// Password hash never stored in the clear
	var user models.User
	require.NoError(t, config.DB.Where("email = ?", "new@example.com").First(&user).Error)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	resp, err = app.Test(jsonRequest(t, "POST", "/auth/login", map[string]string{
		"email":    "new@example.com",
		"password": "correct-horse",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	app := setupAuthApp(t)

	body := map[string]string{"email": "dupe@example.com", "password": "long-enough"}
	resp, err := app.Test(jsonRequest(t, "POST", "/auth/register", body))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, "POST", "/auth/register", body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	app := setupAuthApp(t)

	resp, err := app.Test(jsonRequest(t, "POST", "/auth/register", map[string]string{
		"email":    "short@example.com",
		"password": "short",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	app := setupAuthApp(t)

	resp, err := app.Test(jsonRequest(t, "POST", "/auth/register", map[string]string{
		"email":    "u@example.com",
		"password": "correct-horse",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, "POST", "/auth/login", map[string]string{
		"email":    "u@example.com",
		"password": "wrong-horse",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, "POST", "/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever1",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshTokenRotation(t *testing.T) {
	app := setupAuthApp(t)

	resp, err := app.Test(jsonRequest(t, "POST", "/auth/register", map[string]string{
		"email":    "r@example.com",
		"password": "correct-horse",
	}))
	require.NoError(t, err)
	var auth AuthResponse
	decodeBody(t, resp, &auth)

	resp, err = app.Test(jsonRequest(t, "POST", "/auth/refresh", map[string]string{
		"refresh_token": auth.RefreshToken,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rotated AuthResponse
	decodeBody(t, resp, &rotated)
	assert.NotEmpty(t, rotated.AccessToken)

	// The used refresh token is revoked and cannot be replayed
	resp, err = app.Test(jsonRequest(t, "POST", "/auth/refresh", map[string]string{
		"refresh_token": auth.RefreshToken,
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
