package bootstrap

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"spark/app/http/middlewares"
	"spark/pkg/config"
	"spark/pkg/logger"
	"spark/routes"
)

// SetupRoute registers the global middleware, the API routes and the 404 handler
func SetupRoute(router *gin.Engine, handlers routes.Handlers) {
	setupClientIP(router)

	registerGlobalMiddleWare(router)

	routes.RegisterAPIRoutes(router, handlers)

	setup404Handler(router)
}

// setupClientIP decides which proxies may set the client address. The callback
// allow-list is only as good as this.
func setupClientIP(router *gin.Engine) {
	router.RemoteIPHeaders = []string{"X-Forwarded-For", "X-Real-IP", "CF-Connecting-IP"}

	proxies := config.GetStringSlice("app.trusted_proxies")
	if len(proxies) == 0 {
		proxies = nil
	}
	if err := router.SetTrustedProxies(proxies); err != nil {
		logger.ErrorString("Route", "TrustedProxies", err.Error())
		panic(err)
	}
}

func registerGlobalMiddleWare(router *gin.Engine) {
	router.Use(
		middlewares.Logger(),
		middlewares.Recovery(),
	)
}

func setup404Handler(router *gin.Engine) {
	router.NoRoute(func(c *gin.Context) {
		acceptString := c.Request.Header.Get("Accept")
		if strings.Contains(acceptString, "text/html") {
			c.String(http.StatusNotFound, "404 page not found")
			return
		}
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Route not found, check the url and method",
		})
	})
}
