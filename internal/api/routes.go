package api

import (
	"whatsapp-bot/internal/auth"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the collaborators of the management API.
type Deps struct {
	DB        *gorm.DB
	Verifier  *auth.Verifier
	Status    StatusChecker
	Deliverer Deliverer
	Feed      LiveFeed
}

// RegisterRoutes mounts the authenticated management API on group.
func RegisterRoutes(group *gin.RouterGroup, d Deps) {
	access := &Access{DB: d.DB}
	bots := NewBotHandler(access, d.Status)
	automation := NewAutomationHandler(access)
	menus := NewMenuHandler(access)
	contacts := NewContactHandler(access)
	dashboard := NewDashboardHandler(access, d.Deliverer, d.Feed)

	g := group.Group("", auth.Middleware(d.DB, d.Verifier))

	g.GET("/projects/:projectId/bot", bots.GetProjectBot)
	g.POST("/bots", bots.CreateBot)
	g.PUT("/bots/:id", bots.UpdateBot)
	g.GET("/bots/:id/status", bots.GetBotStatus)

	g.GET("/bots/:id/responses", automation.GetResponses)
	g.POST("/responses", automation.CreateResponse)
	g.PUT("/responses/:id", automation.UpdateResponse)
	g.DELETE("/responses/:id", automation.DeleteResponse)

	g.GET("/bots/:id/triggers", automation.GetTriggers)
	g.POST("/triggers", automation.CreateTrigger)
	g.PUT("/triggers/:id", automation.UpdateTrigger)
	g.POST("/triggers/:id/toggle", automation.ToggleTrigger)
	g.DELETE("/triggers/:id", automation.DeleteTrigger)

	g.GET("/bots/:id/menus", menus.GetMenus)
	g.POST("/menus", menus.CreateMenu)
	g.PUT("/menus/:id", menus.UpdateMenu)
	g.DELETE("/menus/:id", menus.DeleteMenu)
	g.GET("/menus/:id/preview", menus.PreviewMenu)

	g.GET("/bots/:id/contacts", contacts.GetContacts)
	g.GET("/bots/:id/contacts/export", contacts.ExportContacts)
	g.PUT("/contacts/:id", contacts.UpdateContact)

	g.GET("/bots/:id/messages", dashboard.GetMessages)
	g.POST("/bots/:id/send", dashboard.SendMessage)
	g.GET("/bots/:id/analytics", dashboard.GetAnalytics)
	g.GET("/bots/:id/ws", dashboard.Live)
}
