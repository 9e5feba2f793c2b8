package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}
}

func main() {

	// Load .env variables
	LoadEnv()

	logger, err := zap.NewProduction()
	if gin.Mode() == gin.DebugMode {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	// Connect DB
	db, err := InitDB()
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	// Identity provider (Keycloak)
	idp, err := NewKeycloakProvider()
	if err != nil {
		logger.Fatal("identity provider init failed", zap.Error(err))
	}

	users := NewUserService(db, idp, logger)
	groups := NewGroupService(db, logger)
	tasks := NewTaskService(db, logger)
	api := NewAPI(users, groups, tasks, idp, logger)

	// Import provider accounts that have no local row yet.
	if _, err := users.SyncFromProvider(context.Background()); err != nil {
		logger.Warn("user sync from provider failed", zap.Error(err))
	}

	// Start Gin
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(logger))

	// CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	// Routes
	SetupRoutes(r, api)

	addr := ":" + os.Getenv("PORT")
	if addr == ":" {
		addr = ":8080"
	}
	logger.Info("server running", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
