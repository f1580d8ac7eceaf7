package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/camden-git/facealbums/handlers"
	"github.com/camden-git/facealbums/realtime"
	"github.com/camden-git/facealbums/workers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server and the background job workers.
Jobs submitted to /api/jobs run asynchronously and report progress on the
/ws/jobs websocket.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "", "Port to listen on (defaults to PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	port, _ := cmd.Flags().GetString("port")
	if port == "" {
		port = a.cfg.Port
	}

	hub := realtime.NewHub()
	go hub.Run()

	log.Printf("Initializing job worker pool (Workers: %d, Queue Size: %d)...", a.cfg.NumJobWorkers, a.cfg.JobQueueSize)
	queue := workers.NewJobProcessor(a.jobs, hub.PublishJobEvent, a.cfg.JobQueueSize, a.cfg.NumJobWorkers)

	router := handlers.Router{
		Jobs:           &handlers.JobHandler{Jobs: a.jobs, Queue: queue, OnEvent: hub.PublishJobEvent},
		Albums:         &handlers.AlbumHandler{Albums: a.albums},
		Faces:          &handlers.FaceHandler{Oracle: a.oracle, Threshold: a.cfg.AuthMatchThreshold},
		Events:         hub.ServeWS,
		AllowedOrigins: a.cfg.AllowedOrigins,
	}
	if a.local != nil {
		router.Thumbnails = handlers.ThumbnailServer(a.local)
	}

	// no write timeout: /api/images/process holds the response until the job ends
	server := &http.Server{
		Addr:        ":" + port,
		Handler:     router.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
		queue.Stop()
	}()

	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Printf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
