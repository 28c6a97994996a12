package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/api/dto"
	"github.com/gin-gonic/gin"
)

const defaultTopEntries = 10

// CacheStats handles GET /api/v1/cache/stats
func (h *RenderHandler) CacheStats(c *gin.Context) {
	n := defaultTopEntries
	if raw := c.Query("top"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			badRequest(c, "Invalid top parameter", err)
			return
		}
		n = v
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":       h.cache.Stats(),
		"most_used":   h.cache.MostUsed(n),
		"most_recent": h.cache.Recent(n),
	})
}

// ResetCacheStats handles POST /api/v1/cache/stats/reset
// Zeroes the hit and miss counters and keeps the entries.
func (h *RenderHandler) ResetCacheStats(c *gin.Context) {
	h.cache.ResetStats()
	c.JSON(http.StatusOK, gin.H{"stats": h.cache.Stats()})
}

// CacheEntry handles HEAD /api/v1/cache/entries/:hash
// Answers 200 for a live entry without counting a hit.
func (h *RenderHandler) CacheEntry(c *gin.Context) {
	if h.cache.Has(c.Param("hash")) {
		c.Status(http.StatusOK)
		return
	}
	c.Status(http.StatusNotFound)
}

// CleanupCache handles POST /api/v1/cache/cleanup
func (h *RenderHandler) CleanupCache(c *gin.Context) {
	removed := h.cache.Cleanup()
	c.JSON(http.StatusOK, dto.CacheCleanupResponse{
		Removed: removed,
		Entries: h.cache.Len(),
	})
}

// ExportCache handles GET /api/v1/cache/export
func (h *RenderHandler) ExportCache(c *gin.Context) {
	data, err := h.cache.Export()
	if err != nil {
		h.fail(c, "Failed to export cache", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="render-cache.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// ImportCache handles POST /api/v1/cache/import
// A malformed blob leaves the cache empty.
func (h *RenderHandler) ImportCache(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "Failed to read request body", err)
		return
	}

	if err := h.cache.Import(data); err != nil {
		h.logger.Warn("Cache import rejected", slog.String("error", err.Error()))
		badRequest(c, "Invalid cache export", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": h.cache.Len()})
}

// ClearCache handles DELETE /api/v1/cache
func (h *RenderHandler) ClearCache(c *gin.Context) {
	h.cache.Clear()
	c.Status(http.StatusNoContent)
}
