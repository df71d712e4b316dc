package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"whatsapp-bot/internal/models"

	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	Access *Access
}

func NewContactHandler(access *Access) *ContactHandler {
	return &ContactHandler{Access: access}
}

func contactBotID(ct *models.Contact) string { return ct.BotID }

func (h *ContactHandler) contacts(c *gin.Context, botID string) ([]models.Contact, error) {
	contacts := []models.Contact{}
	err := h.Access.DB.WithContext(c.Request.Context()).
		Where("bot_id = ?", botID).
		Order("last_interaction_at DESC NULLS LAST, created_at DESC").
		Find(&contacts).Error
	return contacts, err
}

// GetContacts lists a bot's contacts, most recently active first.
func (h *ContactHandler) GetContacts(c *gin.Context) {
	bot, err := h.Access.bot(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	contacts, err := h.contacts(c, bot.ID)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, contacts)
}

type UpdateContactRequest struct {
	Name *string `json:"name"`
}

// UpdateContact renames a contact. An empty name clears it.
func (h *ContactHandler) UpdateContact(c *gin.Context) {
	contact, err := owned(h.Access, c, c.Param("id"), contactBotID)
	if err != nil {
		abortWith(c, err)
		return
	}

	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact.Name = nilIfEmpty(req.Name)
	if err := h.Access.DB.WithContext(c.Request.Context()).Model(contact).Select("name").Updates(contact).Error; err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, contact)
}

// ExportContacts streams a bot's contacts as CSV.
func (h *ContactHandler) ExportContacts(c *gin.Context) {
	bot, err := h.Access.bot(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	contacts, err := h.contacts(c, bot.ID)
	if err != nil {
		internalError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=contacts-%s.csv", bot.ID))
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"Phone", "Name", "Last Interaction", "Created At"})
	for _, ct := range contacts {
		var name, last string
		if ct.Name != nil {
			name = *ct.Name
		}
		if ct.LastInteractionAt != nil {
			last = ct.LastInteractionAt.UTC().Format(time.RFC3339)
		}
		w.Write([]string{ct.Phone, name, last, ct.CreatedAt.UTC().Format(time.RFC3339)})
	}
	w.Flush()
}
