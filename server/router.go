package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpHandler "crosspost/interfaces/http"
	"crosspost/interfaces/middleware"
)

func InitiateRouter(
	userHandler httpHandler.IUserHandler,
	oauthHandler httpHandler.IOAuthHandler,
	publishHandler httpHandler.IPublishHandler,
	connectionHandler httpHandler.IConnectionHandler,
	facebookPagesHandler httpHandler.IFacebookPagesHandler,
	streamHandler gin.HandlerFunc,
	secretKey string,
	allowedOrigins []string,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.POST("/login", userHandler.Login)

	// Handshake routes are browser-navigated: the initiator identifies the
	// user without aborting, the callback trusts only the signed state.
	auth := router.Group("auth")
	auth.Use(middleware.Identify(secretKey))
	auth.GET("/:platform", oauthHandler.Start)
	auth.GET("/:platform/callback", oauthHandler.Callback)

	api := router.Group("api")
	api.Use(middleware.Auth(secretKey))
	api.POST("/publish", publishHandler.Publish)
	api.GET("/publish/:videoId/status", publishHandler.Status)
	api.GET("/publish/stream", streamHandler)
	api.GET("/connections", connectionHandler.List)
	api.DELETE("/connections/:platform", connectionHandler.Disconnect)
	if facebookPagesHandler != nil {
		api.GET("/facebook/pages", facebookPagesHandler.List)
		api.POST("/facebook/pages", facebookPagesHandler.Select)
	}

	return router
}
