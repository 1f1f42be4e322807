package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ytflow/ytflow/internal/cache"
	"github.com/ytflow/ytflow/internal/logging"
	"github.com/ytflow/ytflow/internal/metrics"
	"github.com/ytflow/ytflow/internal/pipeline"
	"github.com/ytflow/ytflow/pkg/models"
)

// Pipeline is the orchestrator surface the handlers need; narrowed to an
// interface so handler tests can run against fakes.
type Pipeline interface {
	Download(ctx context.Context, rawURL string, format models.Format, quality models.Quality) (*pipeline.DownloadResult, error)
	Transcribe(ctx context.Context, rawURL, language string) (*pipeline.TranscribeResult, error)
}

type API struct {
	pipeline   Pipeline
	cache      *cache.Cache // nil when Redis is disabled
	bufferSize int
	log        *logging.Logger
}

type downloadRequest struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Quality string `json:"quality"`
}

type transcribeRequest struct {
	URL      string `json:"url"`
	Language string `json:"language"`
}

// Download endpoint: streams the extracted media as an attachment.
func (api *API) downloadVideo(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	format, err := models.ParseFormat(req.Format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	quality, err := models.ParseQuality(req.Quality)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := api.pipeline.Download(c.Request.Context(), req.URL, format, quality)
	if err != nil {
		writeError(c, err)
		return
	}
	defer result.Stream.Close()

	// Fixed-size buffer: a slow client throttles the upstream transfer
	// instead of growing memory.
	buf := make([]byte, api.bufferSize)

	// Read ahead of the status line: conversion setup failures surface on
	// the first read, and once headers are written they cannot be unsent.
	n, readErr := result.Stream.Read(buf)
	if n == 0 && readErr != nil && readErr != io.EOF {
		writeError(c, readErr)
		return
	}

	c.Header("Content-Type", result.ContentType)
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Header("X-Quality-Requested", quality.Label())
	if result.Selection.Substituted {
		c.Header("X-Quality-Selected", result.Selection.ActualQuality.Label())
	}
	c.Status(http.StatusOK)

	written := int64(n)
	if n > 0 {
		if _, err := c.Writer.Write(buf[:n]); err != nil {
			metrics.DownloadBytesTotal.Add(float64(written))
			api.log.WithError(err).WithJobID(result.Job.ID).Debug("Download stream ended early")
			return
		}
	}
	if readErr == nil {
		m, err := io.CopyBuffer(c.Writer, result.Stream, buf)
		written += m
		if err != nil {
			// Most commonly the client disconnected mid-download.
			api.log.WithError(err).WithJobID(result.Job.ID).Debug("Download stream ended early")
		}
	}
	metrics.DownloadBytesTotal.Add(float64(written))
}

// Transcribe endpoint: returns the full transcript as JSON.
func (api *API) transcribeVideo(c *gin.Context) {
	var req transcribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	result, err := api.pipeline.Transcribe(c.Request.Context(), req.URL, req.Language)
	if err != nil {
		writeError(c, err)
		return
	}

	transcript := result.Transcript
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"transcript": transcript.Text(),
		"segments":   transcript.Segments,
		"language":   transcript.Language,
		"duration":   transcript.Duration,
	})
}

// Capability descriptions for GET probes; no side effects.
func (api *API) downloadInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "YTFlow Download API — use POST with { url, format, quality }",
	})
}

func (api *API) transcribeInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "YTFlow Transcribe API — use POST with { url, language }",
	})
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	if api.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := api.cache.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func writeError(c *gin.Context, err error) {
	apiErr := pipeline.AsAPIError(err)
	c.JSON(apiErr.Status, gin.H{
		"error": apiErr.Message,
		"code":  apiErr.Code,
	})
}
