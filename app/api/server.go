package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const usernameKey = "username"

type MediaConfig struct {
	Dir    string
	Prefix string
}

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, checker CredentialChecker, mediaCfg MediaConfig) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	setupRoutes(r, handler, checker, mediaCfg)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, checker CredentialChecker, mediaCfg MediaConfig) {
	r.GET("/health", handler.GetHealth)

	protected := r.Group("/")
	protected.Use(basicAuthMiddleware(checker))
	{
		protected.GET("/", handler.GetGallery)
		protected.GET("/feed/:id", handler.GetCategoryFeed)
		protected.POST("/add_category", handler.AddCategory)
		protected.POST("/delete_category/:id", handler.DeleteCategory)
		protected.POST("/add_tweet", handler.AddTweet)
		protected.POST("/delete_tweet/:id", handler.DeleteTweet)
		protected.POST("/update_category_order", handler.UpdateCategoryOrder)

		if mediaCfg.Dir != "" {
			protected.Static(mediaCfg.Prefix, mediaCfg.Dir)
		}
	}

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// basicAuthMiddleware rejects requests without valid Basic credentials and
// stores the authenticated username for handlers.
func basicAuthMiddleware(checker CredentialChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok || !checker.Check(username, password) {
			if ok {
				slog.Info("Authentication failed", "username", username, "client_ip", c.ClientIP())
			}
			c.Header("WWW-Authenticate", `Basic realm="Login Required"`)
			c.String(http.StatusUnauthorized, "Could not verify your access level for that URL.\nYou have to login with proper credentials")
			c.Abort()
			return
		}

		c.Set(usernameKey, username)
		c.Next()
	}
}
