package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/solophp/taskqueue/internal/config"
	"github.com/solophp/taskqueue/internal/pool"
	"github.com/solophp/taskqueue/internal/proclock"
	"github.com/solophp/taskqueue/internal/storage/postgres"
	"github.com/solophp/taskqueue/internal/worker"
	"github.com/solophp/taskqueue/migrations"
)

func main() {
	drain := flag.Bool("drain", false, "process due tasks once and exit")
	payloadType := flag.String("type", "", "only claim tasks of this payload type")
	flag.Parse()

	log.Println("Starting Worker...")

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

	lock := proclock.New(queueCfg.LockFile)
	ok, err := lock.Acquire()
	if err != nil {
		log.Fatal("Process lock failed:", err)
	}
	if !ok {
		// Another consumer is already running on this host; that is a
		// normal exit, not a failure.
		log.Println("Another worker holds the process lock. Exiting.")
		return
	}
	defer lock.Release()

	repo := postgres.NewTaskRepository(db, postgres.Options{
		MaxRetries:      queueCfg.MaxRetries,
		LockTimeout:     queueCfg.LockTimeout,
		DeleteOnSuccess: queueCfg.DeleteOnSuccess,
	})
	processor := worker.NewProcessor(repo, dispatcher(), queueCfg.BatchLimit)

	if *drain {
		n, err := processor.RunUntilDrained(ctx, *payloadType)
		if err != nil {
			log.Fatal("Drain failed:", err)
		}
		log.Printf("Processed %d tasks. Shutdown complete.", n)
		return
	}

	workerPool := pool.NewWorkerPool(queueCfg.WorkerCount, repo, processor, *payloadType)
	workerPool.Start()
	log.Println("Worker pool active. Press Ctrl+C to stop.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	workerPool.Stop()
	lock.Release()
	log.Println("Shutdown complete.")
}
