package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"spark/bootstrap"
	btsConfig "spark/config"
	"spark/pkg/app"
	"spark/pkg/config"
	"spark/pkg/logger"
	"spark/pkg/queue"
	"spark/pkg/redis"
	"spark/routes"
)

func init() {
	// registers the config groups under config/
	btsConfig.Initialize()
}

// App owns what has to be shut down gracefully
type App struct {
	server *http.Server
	worker *queue.Worker
}

func main() {
	env := parseFlags()

	handlers, worker := setupApplication(env)

	router := setupServer(handlers)

	a := &App{
		server: &http.Server{
			Addr:              ":" + config.Get("app.port"),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		worker: worker,
	}

	a.start()
}

func parseFlags() string {
	var env string
	flag.StringVar(&env, "env", "", "load a .env file, e.g. --env=testing loads .env.testing")
	flag.Parse()
	return env
}

// setupApplication initializes config, logging, storage and the payment stack
func setupApplication(env string) (routes.Handlers, *queue.Worker) {
	config.InitConfig(env)

	bootstrap.SetupLogger()

	bootstrap.SetupDB()

	bootstrap.SetupRedis()

	q, worker := bootstrap.SetupQueue()

	return bootstrap.SetupPayment(q), worker
}

func setupServer(handlers routes.Handlers) *gin.Engine {
	if app.IsLocal() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	bootstrap.SetupRoute(router, handlers)

	return router
}

// start serves until SIGINT or SIGTERM, then drains requests and receipt workers
func (a *App) start() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.InfoString("Server", "Start", "listening on "+a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	<-quit
	logger.InfoString("Server", "Shutdown", "shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		logger.ErrorString("Server", "Shutdown", err.Error())
	}

	if a.worker != nil {
		a.worker.Stop()
	}
	redis.Close()

	logger.InfoString("Server", "Shutdown", "server stopped")
	_ = logger.Logger.Sync()
}
