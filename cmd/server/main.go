package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SamiulxHasanx07/atm-management-system/internal/config"
	"github.com/SamiulxHasanx07/atm-management-system/internal/database"
	"github.com/SamiulxHasanx07/atm-management-system/internal/handlers"
	mW "github.com/SamiulxHasanx07/atm-management-system/internal/middleware"
	"github.com/SamiulxHasanx07/atm-management-system/internal/security"
	"github.com/SamiulxHasanx07/atm-management-system/internal/services"
	"github.com/spf13/viper"
)

func main() {
	config.Init(".env")
	ctx := context.Background()

	if _, err := config.JWTSecret(); err != nil {
		log.Fatalf("Refusing to start: %v", err)
	}

	atmConfig := config.LoadATMConfig()

	codec, err := security.NewArgon2Codec(security.LoadConfig())
	if err != nil {
		log.Fatalf("Failed to initialize PIN codec: %v", err)
	}

	var ledger services.AccountLedger
	switch driver := viper.GetString("ledger.driver"); driver {
	case "memory":
		log.Println("Using in-memory ledger; accounts are lost on restart")
		ledger = services.NewMemoryLedger(atmConfig, codec)
	case "postgres":
		db := database.InitDatabase(ctx)
		defer db.Close()
		ledger = services.NewPostgresLedger(db, atmConfig, codec)
	default:
		log.Fatalf("Unknown ledger driver %q (want memory or postgres)", driver)
	}

	redisClient := database.InitRedis(ctx)
	var sessions services.SessionStore
	if redisClient != nil {
		defer redisClient.Close()
		sessions = services.NewRedisSessionStore(redisClient)
	} else {
		sessions = services.NewMemorySessionStore()
	}

	mW.InitAuthMiddleware(redisClient)

	controller := services.NewSessionController(ledger, codec, atmConfig)
	router := handlers.NewRouter(handlers.Dependencies{
		Terminals: services.NewTerminalService(controller, sessions),
		Ledger:    ledger,
		QR:        services.NewQRService(redisClient),
		Auth:      services.NewAuthService(redisClient),
	})

	port := viper.GetString("server.port")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
