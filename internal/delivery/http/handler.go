package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/pricepilot/linkverify/internal/domain"
)

// Verifier runs one link verification end to end.
type Verifier interface {
	Verify(ctx context.Context, url, productTitle, referencePrice string) *domain.VerificationResult
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	verifier         Verifier
	batchConcurrency int
}

// NewHandler creates a new HTTP handler
func NewHandler(verifier Verifier, batchConcurrency int) *Handler {
	if batchConcurrency <= 0 {
		batchConcurrency = 10
	}
	return &Handler{
		verifier:         verifier,
		batchConcurrency: batchConcurrency,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Link Verification API is running",
	})
}

// VerifyLink verifies that a single product can be found at a URL and, when a
// reference price is supplied, that the listed price beats it.
func (h *Handler) VerifyLink(c *gin.Context) {
	var req domain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing required fields: url and productTitle",
		})
		return
	}

	result := h.verifier.Verify(c.Request.Context(), req.URL, req.ProductTitle, req.ReferencePrice)
	c.JSON(http.StatusOK, result)
}

// batchVerifyRequest carries batch items without binding tags: item-level
// validation happens per item so one bad link doesn't fail the whole batch.
type batchVerifyRequest struct {
	Links []batchLinkItem `json:"links"`
}

type batchLinkItem struct {
	URL            string `json:"url"`
	ProductTitle   string `json:"productTitle"`
	ReferencePrice string `json:"referencePrice"`
}

// VerifyBatch verifies multiple links in one request, fanning out over a
// bounded worker pool and preserving input order in the results.
func (h *Handler) VerifyBatch(c *gin.Context) {
	var req batchVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Links) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No links provided"})
		return
	}

	results := make([]*domain.VerificationResult, len(req.Links))

	g, gctx := errgroup.WithContext(c.Request.Context())
	g.SetLimit(h.batchConcurrency)
	for i, link := range req.Links {
		g.Go(func() error {
			if link.URL == "" || link.ProductTitle == "" {
				results[i] = &domain.VerificationResult{
					Valid:         false,
					ErrorCategory: domain.CategoryValidationError,
					URL:           link.URL,
					Error:         "Missing url or productTitle",
				}
				return nil
			}
			results[i] = h.verifier.Verify(gctx, link.URL, link.ProductTitle, link.ReferencePrice)
			return nil
		})
	}
	// Workers report failures as structured results, never as errors.
	_ = g.Wait()

	validCount := 0
	for _, result := range results {
		if result.Valid {
			validCount++
		}
	}

	c.JSON(http.StatusOK, domain.BatchVerifyResult{
		Results:    results,
		ValidCount: validCount,
		TotalCount: len(results),
	})
}
