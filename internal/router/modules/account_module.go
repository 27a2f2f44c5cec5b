package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blanjamart/account-service/internal/container"
	handlers "github.com/blanjamart/account-service/internal/interface/http"
	"github.com/blanjamart/account-service/internal/interface/middleware"
	"github.com/blanjamart/account-service/pkg/helpers"
)

// AccountModule registers every account route. Reads are public; profile
// mutations require a valid token and delete requires the admin level.
type AccountModule struct {
	handler *handlers.AccountHandler
	tokens  *helpers.TokenManager
}

func NewAccountModule(h *handlers.AccountHandler, tokens *helpers.TokenManager) *AccountModule {
	return &AccountModule{handler: h, tokens: tokens}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	// brute-force guard on the credential endpoints
	authLimit := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIPAndPath(), nil)
	// per-user cap on authenticated mutations
	userLimit := middleware.RateLimit(rdb, 60, time.Minute, middleware.KeyByUser(), nil)
	auth := middleware.Auth(m.tokens)

	rg.POST("/register", authLimit, m.handler.Register)
	rg.POST("/login", authLimit, m.handler.Login)

	users := rg.Group("/users")
	{
		users.GET("", m.handler.ListAll)
		users.GET("/:id", m.handler.GetByID)
		users.GET("/search/:username", m.handler.Search)
		users.GET("/email/:email", m.handler.FindByEmail)

		users.PUT("/password", authLimit, m.handler.ResetPassword)
		users.PUT("/:id", auth, userLimit, m.handler.UpdateProfile)
		users.PUT("/photo/:id", auth, userLimit, m.handler.UpdatePhoto)
		users.DELETE("/:id", auth, middleware.RequireLevel("admin"), m.handler.Delete)
	}
}
