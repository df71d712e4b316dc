package api

import (
	"errors"
	"net/http"

	"whatsapp-bot/internal/auth"
	"whatsapp-bot/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// Access resolves resources on behalf of the authenticated profile. A
// resource belongs to the profile's enterprise through its bot's project.
type Access struct {
	DB *gorm.DB
}

func (a *Access) project(c *gin.Context, projectID string) (*models.Project, error) {
	var project models.Project
	if err := a.DB.WithContext(c.Request.Context()).Where("id = ?", projectID).Take(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	profile := auth.ProfileFrom(c)
	if profile == nil || profile.EnterpriseID != project.EnterpriseID {
		return nil, ErrForbidden
	}
	return &project, nil
}

func (a *Access) bot(c *gin.Context, botID string) (*models.Bot, error) {
	var bot models.Bot
	if err := a.DB.WithContext(c.Request.Context()).Where("id = ?", botID).Take(&bot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := a.project(c, bot.ProjectID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	return &bot, nil
}

// owned loads dest by id and checks that its bot belongs to the caller.
func owned[T any](a *Access, c *gin.Context, id string, botID func(*T) string) (*T, error) {
	var dest T
	if err := a.DB.WithContext(c.Request.Context()).Where("id = ?", id).Take(&dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := a.bot(c, botID(&dest)); err != nil {
		return nil, err
	}
	return &dest, nil
}

// abortWith maps an access error to its HTTP answer.
func abortWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	default:
		internalError(c, err)
	}
}

func internalError(c *gin.Context, err error) {
	log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
