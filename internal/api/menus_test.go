package api

import (
	"net/http"
	"testing"

	"whatsapp-bot/internal/models"
	"whatsapp-bot/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMenuWithOptionsAndPreview(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/menus", gin.H{
		"bot_id":      e.owner.Bot.ID,
		"title":       "Atendimento",
		"description": "Escolha uma opção:",
		"options": []gin.H{
			{"option_text": "Horários"},
			{"option_text": "Endereço"},
			{"option_text": "Falar com atendente"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	menu := decode[models.Menu](t, w)
	require.Len(t, menu.Options, 3)
	assert.Equal(t, 2, menu.Options[2].Order)

	w = e.do(http.MethodGet, "/api/menus/"+menu.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		"*Atendimento*\n\nEscolha uma opção:\n\n1. Horários\n2. Endereço\n3. Falar com atendente",
		decode[map[string]string](t, w)["text"])

	w = e.do(http.MethodGet, "/api/bots/"+e.owner.Bot.ID+"/menus", nil)
	require.Equal(t, http.StatusOK, w.Code)
	menus := decode[[]models.Menu](t, w)
	require.Len(t, menus, 1)
	require.Len(t, menus[0].Options, 3)
	assert.Equal(t, "Horários", menus[0].Options[0].OptionText)
}

func TestCreateMenuRejects(t *testing.T) {
	e := newEnv(t)
	foreign := testutil.TextResponse(t, e.db, e.other.Bot.ID, "theirs")

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"missing title", gin.H{"bot_id": e.owner.Bot.ID}, http.StatusBadRequest},
		{"blank option", gin.H{"bot_id": e.owner.Bot.ID, "title": "M", "options": []gin.H{{"option_text": " "}}}, http.StatusBadRequest},
		{"option response of another bot", gin.H{"bot_id": e.owner.Bot.ID, "title": "M", "options": []gin.H{{"option_text": "a", "response_id": foreign.ID}}}, http.StatusBadRequest},
		{"foreign bot", gin.H{"bot_id": e.other.Bot.ID, "title": "M"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(http.MethodPost, "/api/menus", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	var count int64
	e.db.Model(&models.Menu{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateMenuEqualOrderKeepsListPosition(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/menus", gin.H{
		"bot_id": e.owner.Bot.ID,
		"title":  "Ajuda",
		"options": []gin.H{
			{"option_text": "c", "order": 0},
			{"option_text": "a", "order": 0},
			{"option_text": "b", "order": 0},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	menu := decode[models.Menu](t, w)

	w = e.do(http.MethodGet, "/api/menus/"+menu.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*Ajuda*\n\n1. c\n2. a\n3. b", decode[map[string]string](t, w)["text"])
}

func TestCreateMenuOptionLookupFailure(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.Migrator().DropTable(&models.Response{}))

	w := e.do(http.MethodPost, "/api/menus", gin.H{
		"bot_id":  e.owner.Bot.ID,
		"title":   "M",
		"options": []gin.H{{"option_text": "a", "response_id": "00000000-0000-0000-0000-000000000001"}},
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "no such table")
}

func TestUpdateMenuReplacesOptions(t *testing.T) {
	e := newEnv(t)
	menu, _ := testutil.MenuResponse(t, e.db, e.owner.Bot.ID, "Old", "desc", "a", "b")

	w := e.do(http.MethodPut, "/api/menus/"+menu.ID, gin.H{"title": "New"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Menu](t, w)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "desc", *updated.Description)
	assert.Len(t, updated.Options, 2)

	w = e.do(http.MethodPut, "/api/menus/"+menu.ID, gin.H{
		"description": "",
		"options":     []gin.H{{"option_text": "z", "order": 5}, {"option_text": "y", "order": 1}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated = decode[models.Menu](t, w)
	assert.Nil(t, updated.Description)
	require.Len(t, updated.Options, 2)
	assert.Equal(t, "y", updated.Options[0].OptionText)
	assert.Equal(t, "z", updated.Options[1].OptionText)

	var options int64
	e.db.Model(&models.MenuOption{}).Where("menu_id = ?", menu.ID).Count(&options)
	assert.EqualValues(t, 2, options)
}

func TestDeleteMenu(t *testing.T) {
	e := newEnv(t)
	usedMenu, _ := testutil.MenuResponse(t, e.db, e.owner.Bot.ID, "Used", "", "a")

	free := models.Menu{BotID: e.owner.Bot.ID, Title: "Free"}
	require.NoError(t, e.db.Create(&free).Error)
	require.NoError(t, e.db.Create(&models.MenuOption{MenuID: free.ID, OptionText: "x"}).Error)

	w := e.do(http.MethodDelete, "/api/menus/"+usedMenu.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodDelete, "/api/menus/"+free.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var options int64
	e.db.Model(&models.MenuOption{}).Where("menu_id = ?", free.ID).Count(&options)
	assert.Zero(t, options)
}

func TestMenuOfAnotherEnterprise(t *testing.T) {
	e := newEnv(t)
	menu, _ := testutil.MenuResponse(t, e.db, e.other.Bot.ID, "Theirs", "")

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/api/menus/"+menu.ID+"/preview", nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPut, "/api/menus/"+menu.ID, gin.H{"title": "x"}).Code)
}
