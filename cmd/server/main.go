// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the entry point for the spatial audio enrichment server.
//
// The application runs a Gin web server exposing a REST API for submitting
// audio files to the enrichment pipeline and retrieving the resulting job
// records and artifacts. Processing is synchronous: the submit request
// returns once the pipeline has finished and the job record is persisted.
// The server is instrumented with OpenTelemetry for logging, tracing and
// metrics.
//
// Functions:
//   - main: sets up configuration, logging, telemetry and state, defines the
//     routes and handles graceful shutdown.
//   - JobsRouter: registers the job submission and retrieval endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/store"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/telemetry"
)

// main orchestrates the setup of logging, telemetry, configuration, the
// pipeline state and the web server, then blocks until an interrupt signal
// triggers a graceful shutdown.
func main() {
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := GetConfig()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, cfg)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	InitState(ctx)
	slog.Info("Initialized State")

	r := gin.Default()

	// Trace every incoming request.
	r.Use(otelgin.Middleware(cfg.Application.Name))

	// Permissive CORS, suitable for development and same-network clients.
	r.Use(cors.Default())

	apiV1 := r.Group("/api/v1")
	{
		JobsRouter(apiV1)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Application.Port),
		Handler: r,
		// No write timeout: a submit request stays open for the whole
		// pipeline run, which is dominated by the upstream model services.
		ReadTimeout: 60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready", "port", cfg.Application.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("Telemetry Shutdown Failed:", "error", err)
	}

	log.Println("Server exiting")
}

// JobsRouter sets up the API routes for pipeline jobs.
//
// Endpoints:
//   - POST /jobs: submit an audio file (multipart field "file", optional
//     "language" hint) and run the pipeline synchronously. Responds with the
//     persisted job record; a failed pipeline run is still a 200 with a
//     status of "failed", because the job resource itself was created.
//   - GET /jobs/:id: retrieve a persisted job record.
//   - GET /jobs/:id/artifacts/:name: download one artifact of a job.
func JobsRouter(r *gin.RouterGroup) {
	jobs := r.Group("/jobs")
	{
		jobs.POST("", func(c *gin.Context) {
			fileHeader, err := c.FormFile("file")
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "missing multipart field 'file'"})
				return
			}

			maxBytes := int64(state.config.Application.MaxUploadMB) << 20
			if maxBytes > 0 && fileHeader.Size > maxBytes {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{
					"error": fmt.Sprintf("upload exceeds the %d MB limit", state.config.Application.MaxUploadMB),
				})
				return
			}

			f, err := fileHeader.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
				return
			}
			content, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
				return
			}
			if len(content) == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "empty upload"})
				return
			}

			language := c.PostForm("language")

			job, err := state.pipeline.Process(c.Request.Context(), fileHeader.Filename, content, language)
			if err != nil {
				slog.ErrorContext(c.Request.Context(), "pipeline run aborted", "error", err)
				c.Status(http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusOK, job)
		})

		jobs.GET("/:id", func(c *gin.Context) {
			job, err := state.store.LoadJob(c.Param("id"))
			if err != nil {
				if errors.Is(err, store.ErrJobNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
					return
				}
				c.Status(http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusOK, job)
		})

		jobs.GET("/:id/artifacts/:name", func(c *gin.Context) {
			path, err := state.store.ArtifactPath(c.Param("id"), c.Param("name"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
				return
			}
			c.File(path)
		})
	}
}
