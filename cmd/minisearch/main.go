package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irevoire/minisearch/api"
	"github.com/irevoire/minisearch/config"
	"github.com/irevoire/minisearch/internal/backend"
)

func main() {
	// Define command-line flags
	var (
		help    = flag.Bool("help", false, "Show help message")
		version = flag.Bool("version", false, "Show version information")
		port    = flag.String("port", "3000", "Port to run the server on")
		dataDir = flag.String("data-dir", ".", "Directory to store index data")
	)

	flag.Parse()

	// Handle help flag
	if *help {
		printUsage()
		return
	}

	// Handle version flag
	if *version {
		fmt.Printf("minisearch v1.0.0\n")
		fmt.Printf("A small full-text search engine with interchangeable storage backends\n")
		return
	}

	if flag.NArg() > 1 {
		fmt.Fprintf(os.Stderr, "Error: expected at most one backend argument, got %d\n\n", flag.NArg())
		printUsage()
		os.Exit(1)
	}

	backendType, err := config.ParseBackendType(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage()
		os.Exit(1)
	}

	// Initialize the selected backend
	log.Printf("Using backend %s with data directory: %s", backendType, *dataDir)
	index, err := backend.Open(backendType, *dataDir)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", backendType, err)
	}

	// Initialize Gin router
	router := gin.Default()

	// Setup API routes
	api.SetupRoutes(router, index)

	// Configure HTTP server with timeouts to prevent hanging connections
	srv := &http.Server{
		Addr:           ":" + *port,
		Handler:        router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server started on `http://localhost:%s/`", *port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := index.Close(); err != nil {
		log.Printf("Failed to close index: %v", err)
	}

	log.Println("Server exited")
}

func printUsage() {
	fmt.Printf("minisearch - a small full-text search engine over JSON documents\n\n")
	fmt.Printf("Usage: %s [options] [backend]\n\n", os.Args[0])
	fmt.Printf("Backends:\n")
	for _, backendType := range config.BackendTypes() {
		marker := "  "
		if backendType == config.DefaultBackend {
			marker = "* "
		}
		fmt.Printf("  %s%s\n", marker, backendType)
	}
	fmt.Printf("  (* is the default when no backend is given)\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s                 # page-mapped backend on port 3000\n", os.Args[0])
	fmt.Printf("  %s naive           # in-memory JSON-snapshot backend\n", os.Args[0])
	fmt.Printf("  %s --port 9000 badger\n", os.Args[0])
}
