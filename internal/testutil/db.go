// Package testutil holds database fixtures shared by package tests.
package testutil

import (
	"testing"
	"time"

	"whatsapp-bot/internal/database"
	"whatsapp-bot/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every pooled connection would open its own empty in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Tenant is one enterprise with a profile, a project and a bot.
type Tenant struct {
	Enterprise models.Enterprise
	Profile    models.Profile
	Project    models.Project
	Bot        models.Bot
}

// SeedTenant creates a full ownership chain. The bot is active.
func SeedTenant(t testing.TB, db *gorm.DB, instanceID string) Tenant {
	t.Helper()

	var tn Tenant
	tn.Enterprise = models.Enterprise{Name: "Acme " + instanceID}
	require.NoError(t, db.Create(&tn.Enterprise).Error)

	tn.Profile = models.Profile{
		Email:        instanceID + "@example.com",
		Name:         "Owner",
		Role:         "user",
		Status:       "active",
		EnterpriseID: tn.Enterprise.ID,
	}
	require.NoError(t, db.Create(&tn.Profile).Error)

	tn.Project = models.Project{
		Name:         "Project " + instanceID,
		Slug:         "project-" + instanceID,
		Status:       "active",
		EnterpriseID: tn.Enterprise.ID,
	}
	require.NoError(t, db.Create(&tn.Project).Error)

	tn.Bot = models.Bot{
		ProjectID:  tn.Project.ID,
		InstanceID: instanceID,
		APIToken:   "token-" + instanceID,
		Status:     models.BotStatusActive,
	}
	require.NoError(t, db.Create(&tn.Bot).Error)
	return tn
}

// TextResponse stores a text response for bot.
func TextResponse(t testing.TB, db *gorm.DB, botID, text string) models.Response {
	t.Helper()
	r := models.Response{BotID: botID, Type: models.ResponseTypeText, Text: &text}
	require.NoError(t, db.Create(&r).Error)
	return r
}

// MenuResponse stores a menu with ordered options and a response pointing at it.
func MenuResponse(t testing.TB, db *gorm.DB, botID, title, description string, options ...string) (models.Menu, models.Response) {
	t.Helper()
	menu := models.Menu{BotID: botID, Title: title}
	if description != "" {
		menu.Description = &description
	}
	require.NoError(t, db.Create(&menu).Error)

	for i, text := range options {
		opt := models.MenuOption{MenuID: menu.ID, OptionText: text, Order: i}
		require.NoError(t, db.Create(&opt).Error)
	}

	r := models.Response{BotID: botID, Type: models.ResponseTypeMenu, MenuID: &menu.ID}
	require.NoError(t, db.Create(&r).Error)
	return menu, r
}

// Trigger stores an active trigger. created is used as created_at so
// ordering tests do not depend on clock resolution.
func Trigger(t testing.TB, db *gorm.DB, botID, text, matchType string, priority int, responseID string, created time.Time) models.Trigger {
	t.Helper()
	tr := models.Trigger{
		BotID:       botID,
		TriggerText: text,
		MatchType:   matchType,
		Priority:    priority,
		ResponseID:  responseID,
		IsActive:    true,
		CreatedAt:   created,
	}
	require.NoError(t, db.Create(&tr).Error)
	return tr
}

// AccessToken signs an HS256 token for sub that expires in an hour.
func AccessToken(t testing.TB, secret, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
