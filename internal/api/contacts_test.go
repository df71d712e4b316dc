package api

import (
	"encoding/csv"
	"net/http"
	"strings"
	"testing"
	"time"

	"whatsapp-bot/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedContact(t *testing.T, e *env, botID, phone, name string, last *time.Time) models.Contact {
	t.Helper()
	ct := models.Contact{BotID: botID, Phone: phone, LastInteractionAt: last}
	if name != "" {
		ct.Name = &name
	}
	require.NoError(t, e.db.Create(&ct).Error)
	return ct
}

func TestGetContactsMostRecentFirst(t *testing.T) {
	e := newEnv(t)
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	seedContact(t, e, e.owner.Bot.ID, "551100000001", "Old", &older)
	seedContact(t, e, e.owner.Bot.ID, "551100000002", "", nil)
	seedContact(t, e, e.owner.Bot.ID, "551100000003", "New", &newer)
	seedContact(t, e, e.other.Bot.ID, "551100000004", "Other", &newer)

	w := e.do(http.MethodGet, "/api/bots/"+e.owner.Bot.ID+"/contacts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]models.Contact](t, w)
	require.Len(t, list, 3)
	assert.Equal(t, "551100000003", list[0].Phone)
	assert.Equal(t, "551100000001", list[1].Phone)
	assert.Equal(t, "551100000002", list[2].Phone)
}

func TestUpdateContact(t *testing.T) {
	e := newEnv(t)
	ct := seedContact(t, e, e.owner.Bot.ID, "551100000001", "Old", nil)
	foreign := seedContact(t, e, e.other.Bot.ID, "551100000002", "Other", nil)

	w := e.do(http.MethodPut, "/api/contacts/"+ct.ID, gin.H{"name": "Maria"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Maria", *decode[models.Contact](t, w).Name)

	w = e.do(http.MethodPut, "/api/contacts/"+foreign.ID, gin.H{"name": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportContacts(t *testing.T) {
	e := newEnv(t)
	last := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seedContact(t, e, e.owner.Bot.ID, "551100000001", "Ana, Silva", &last)

	w := e.do(http.MethodGet, "/api/bots/"+e.owner.Bot.ID+"/contacts/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Phone", "Name", "Last Interaction", "Created At"}, records[0])
	assert.Equal(t, "Ana, Silva", records[1][1])
	assert.Equal(t, "2025-03-01T12:00:00Z", records[1][2])
}
