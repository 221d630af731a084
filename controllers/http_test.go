package controller_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"rollcall/config"
	"rollcall/models"
	"rollcall/routes"
	"rollcall/scheduler"
	"rollcall/utils"
)

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	sched *scheduler.Service
	token string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	config.AppConfig.JWTSecret = "test-secret"
	config.AppConfig.AdminPassword = "hunter2"
	config.AppConfig.AdminPasswordHash = ""
	config.AppConfig.SessionTimeout = time.Hour

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Campaign{}, &models.Player{}, &models.Poll{}, &models.Response{},
	))

	sched := scheduler.NewService(db, log.New(io.Discard, "", 0), nil, "http://rollcall.test")
	sched.Now = func() time.Time {
		return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	}

	app := fiber.New()
	routes.SetupRoutes(app, db, sched)

	token, err := utils.GenerateAdminToken()
	require.NoError(t, err)

	return &testEnv{app: app, db: db, sched: sched, token: token}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}, authed bool) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodPost, "/auth/login",
		fiber.Map{"password": "wrong"}, false)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = env.request(t, fiber.MethodPost, "/auth/login",
		fiber.Map{"password": "hunter2"}, false)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["token"])

	var hasCookie bool
	for _, c := range resp.Cookies() {
		if c.Name == "access_token" {
			hasCookie = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, hasCookie)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodGet, "/api/v1/campaigns/", nil, false)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/campaigns/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCookieAuthWorks(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/campaigns/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: env.token})
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCreateCampaignGeneratesPolls(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodPost, "/api/v1/campaigns/", fiber.Map{
		"name":               "Curse of Strahd",
		"is_active":          true,
		"start_date":         "2024-01-01",
		"schedule_type":      "dynamic",
		"recurrence_days":    14,
		"session_time_start": "19:00",
		"session_time_end":   "22:00",
		"polls_in_advance":   2,
		"players": []fiber.Map{
			{"name": "Alice", "is_dm": true, "mention": "<@111>"},
			{"name": "Bob"},
		},
	}, true)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var campaign models.Campaign
	require.NoError(t, env.db.Where("name = ?", "Curse of Strahd").First(&campaign).Error)
	assert.Equal(t, "UTC", campaign.Timezone)
	assert.Equal(t, 14, campaign.RespondDeadlineDays)

	var players []models.Player
	require.NoError(t, env.db.Where("campaign_id = ?", campaign.ID).Order("name").Find(&players).Error)
	require.Len(t, players, 2)
	assert.True(t, players[0].IsDM)

	var polls []models.Poll
	require.NoError(t, env.db.Where("campaign_id = ?", campaign.ID).
		Order("session_number").Find(&polls).Error)
	require.Len(t, polls, 2)
	assert.Equal(t, "2024-01-01", polls[0].StartDate)
	assert.Equal(t, "2024-01-15", polls[1].StartDate)
}

func TestCreateCampaignValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		patch fiber.Map
	}{
		{"missing name", fiber.Map{"name": ""}},
		{"bad start date", fiber.Map{"start_date": "01/02/2024"}},
		{"bad schedule type", fiber.Map{"schedule_type": "weekly"}},
		{"static without weekday", fiber.Map{"schedule_type": "static"}},
		{"bad session time", fiber.Map{"session_time_start": "7pm"}},
		{"unknown timezone", fiber.Map{"timezone": "Mars/Olympus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := fiber.Map{
				"name":               "Test",
				"start_date":         "2024-01-01",
				"recurrence_days":    14,
				"session_time_start": "19:00",
				"session_time_end":   "22:00",
			}
			for k, v := range tt.patch {
				body[k] = v
			}

			resp := env.request(t, fiber.MethodPost, "/api/v1/campaigns/", body, true)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestResponseLifecycle(t *testing.T) {
	env := newTestEnv(t)

	campaign := models.Campaign{
		Name: "Test", StartDate: "2024-01-01", ScheduleType: models.ScheduleDynamic,
		RecurrenceDays: 14, Timezone: "UTC", PollsInAdvance: 1,
		SessionTimeStart: "19:00", SessionTimeEnd: "22:00",
		RespondDeadlineDays: 14, DecideDeadlineDays: 7,
	}
	require.NoError(t, env.db.Create(&campaign).Error)
	player := models.Player{CampaignID: campaign.ID, Name: "Bob"}
	require.NoError(t, env.db.Create(&player).Error)
	poll, err := env.sched.CreateManualPoll(campaign.ID, "2024-01-01", "2024-01-14", false)
	require.NoError(t, err)

	vote := fiber.Map{
		"poll_id":       poll.ID,
		"player_id":     player.ID,
		"response_date": "2024-01-03",
		"availability":  "maybe",
	}

	resp := env.request(t, fiber.MethodPut, "/api/v1/responses/", vote, true)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	vote["availability"] = "yes"
	resp = env.request(t, fiber.MethodPut, "/api/v1/responses/", vote, true)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var responses []models.Response
	require.NoError(t, env.db.Where("poll_id = ?", poll.ID).Find(&responses).Error)
	require.Len(t, responses, 1)
	assert.Equal(t, models.AvailabilityYes, responses[0].Availability)

	resp = env.request(t, fiber.MethodDelete, "/api/v1/responses/", fiber.Map{
		"poll_id":       poll.ID,
		"player_id":     player.ID,
		"response_date": "2024-01-03",
	}, true)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var n int64
	require.NoError(t, env.db.Model(&models.Response{}).
		Where("poll_id = ?", poll.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSaveResponseErrors(t *testing.T) {
	env := newTestEnv(t)

	campaign := models.Campaign{
		Name: "Test", StartDate: "2024-01-01", ScheduleType: models.ScheduleDynamic,
		RecurrenceDays: 14, Timezone: "UTC", PollsInAdvance: 1,
		SessionTimeStart: "19:00", SessionTimeEnd: "22:00",
		RespondDeadlineDays: 14, DecideDeadlineDays: 7,
	}
	require.NoError(t, env.db.Create(&campaign).Error)
	poll, err := env.sched.CreateManualPoll(campaign.ID, "2024-01-01", "2024-01-14", false)
	require.NoError(t, err)

	// Unknown poll.
	resp := env.request(t, fiber.MethodPut, "/api/v1/responses/", fiber.Map{
		"poll_id": 999, "player_id": 1,
		"response_date": "2024-01-03", "availability": "yes",
	}, true)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// Date outside the window.
	resp = env.request(t, fiber.MethodPut, "/api/v1/responses/", fiber.Map{
		"poll_id": poll.ID, "player_id": 1,
		"response_date": "2024-02-01", "availability": "yes",
	}, true)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Bad availability value.
	resp = env.request(t, fiber.MethodPut, "/api/v1/responses/", fiber.Map{
		"poll_id": poll.ID, "player_id": 1,
		"response_date": "2024-01-03", "availability": "perhaps",
	}, true)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Votes against a closed poll are forbidden.
	require.NoError(t, env.sched.ClosePoll(poll.Slug, nil))
	resp = env.request(t, fiber.MethodPut, "/api/v1/responses/", fiber.Map{
		"poll_id": poll.ID, "player_id": 1,
		"response_date": "2024-01-03", "availability": "yes",
	}, true)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestPollCloseAndReopenEndpoints(t *testing.T) {
	env := newTestEnv(t)

	campaign := models.Campaign{
		Name: "Test", StartDate: "2024-01-01", ScheduleType: models.ScheduleDynamic,
		RecurrenceDays: 14, Timezone: "UTC", PollsInAdvance: 1,
		SessionTimeStart: "19:00", SessionTimeEnd: "22:00",
		RespondDeadlineDays: 14, DecideDeadlineDays: 7,
	}
	require.NoError(t, env.db.Create(&campaign).Error)
	poll, err := env.sched.CreateManualPoll(campaign.ID, "2024-01-01", "2024-01-14", false)
	require.NoError(t, err)

	resp := env.request(t, fiber.MethodPost, "/api/v1/polls/"+poll.Slug+"/close",
		fiber.Map{"selected_date": "2024-01-06"}, true)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got models.Poll
	require.NoError(t, env.db.First(&got, poll.ID).Error)
	assert.True(t, got.IsClosed)
	require.NotNil(t, got.SelectedDate)
	assert.Equal(t, "2024-01-06", *got.SelectedDate)

	resp = env.request(t, fiber.MethodPost, "/api/v1/polls/"+poll.Slug+"/reopen", nil, true)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, env.db.First(&got, poll.ID).Error)
	assert.False(t, got.IsClosed)
	assert.Nil(t, got.SelectedDate)

	resp = env.request(t, fiber.MethodPost, "/api/v1/polls/unknown/close", fiber.Map{}, true)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
