package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/solophp/taskqueue/internal/config"
	"github.com/solophp/taskqueue/internal/storage/postgres"
	"github.com/solophp/taskqueue/internal/task"
	"github.com/solophp/taskqueue/middleware"
	"github.com/solophp/taskqueue/migrations"
)

func main() {
	log.Println("Starting API...")

	ctx := context.Background()
	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	queueCfg, err := config.LoadQueueConfig(ctx)
	if err != nil {
		log.Fatal("Failed to load queue config:", err)
	}

	db, err := postgres.ConnectDB(ctx, dbCfg)
	if err != nil {
		log.Fatal("Connection failed:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to unwrap sql.DB:", err)
	}
	if err := migrations.Up(sqlDB); err != nil {
		log.Fatal("Migrations failed:", err)
	}

	log.Println("SUCCESS! Database connected")

	repo := postgres.NewTaskRepository(db, postgres.Options{
		MaxRetries:      queueCfg.MaxRetries,
		LockTimeout:     queueCfg.LockTimeout,
		DeleteOnSuccess: queueCfg.DeleteOnSuccess,
	})
	service := task.NewTaskService(repo)
	handler := task.NewTaskHandler(service)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.ErrorHandler())

	r.POST("/tasks", handler.Create)
	r.GET("/tasks/:id", handler.Get)
	r.GET("/tasks", handler.List)

	addr := os.Getenv("SERVER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Printf("Listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatal("Server failed:", err)
	}
}
