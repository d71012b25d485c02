// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/vege25/duelgame/internal/database"
	"github.com/vege25/duelgame/internal/events"
	"github.com/vege25/duelgame/internal/handlers"
	"github.com/vege25/duelgame/internal/middleware"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	ctx := context.Background()

	if os.Getenv("RUN_MIGRATIONS") == "true" {
		if err := database.MigrateUp(database.DSN()); err != nil {
			logger.Fatalf("migrations failed: %v", err)
		}
		logger.Info("database schema is up to date")
	}

	store, err := database.Connect(ctx)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	var emitter events.Emitter = events.Nop{}
	if os.Getenv("REDIS_ADDR") != "" {
		re, err := events.ConnectRedis()
		if err != nil {
			logger.Warnf("event queue disabled: %v", err)
		} else {
			emitter = re
			logger.Info("connected to Redis event queue")
		}
	}

	srv := handlers.NewSessionServer(store, emitter, logger)

	mux := http.NewServeMux()
	// The websocket endpoint stays outside LogMiddleware: the recorder
	// wrapper would hide http.Hijacker from the upgrade. Connect and
	// disconnect are logged inside the handler instead.
	mux.Handle("/ws", handlers.WSHandler(srv))
	mux.Handle("/match", middleware.LogMiddleware(logger)(handlers.MatchHandler(srv)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}
