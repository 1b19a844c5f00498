package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pricepilot/linkverify/internal/domain"
)

// VerificationService sequences the fetch -> extract -> match -> compare
// pipeline into one verification outcome, mapping failures at each stage to
// a typed error category. Each verification is stateless and independent.
type VerificationService struct {
	fetcher domain.PageFetcher
	finder  domain.ProductFinder
}

// NewVerificationService creates a verification service with dependencies.
func NewVerificationService(fetcher domain.PageFetcher, finder domain.ProductFinder) *VerificationService {
	return &VerificationService{
		fetcher: fetcher,
		finder:  finder,
	}
}

// Verify checks whether the claimed product exists on the page at url and,
// when a reference price is supplied, whether the listed price beats it.
// Flow: fetch page -> extract text -> match product -> compare prices.
// Failures short-circuit; the first failed stage determines the category.
// referencePrice may be empty, meaning no price basis exists for rejection.
func (s *VerificationService) Verify(ctx context.Context, url, productTitle, referencePrice string) (result *domain.VerificationResult) {
	// Last line of defense: an unhandled fault anywhere in the pipeline must
	// surface as a structured internal_error result, never a panic.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[VERIFY] panic verifying %s: %v", url, r)
			result = &domain.VerificationResult{
				Valid:         false,
				ErrorCategory: domain.CategoryInternalError,
				URL:           url,
				ProductTitle:  productTitle,
				Error:         fmt.Sprintf("Internal error: %v", r),
			}
		}
	}()

	log.Printf("[VERIFY] verifying %s", url)

	html, err := s.fetcher.Fetch(ctx, url)
	if err != nil || html == "" {
		message := "Failed to fetch URL"
		if err != nil {
			message = err.Error()
		}
		return &domain.VerificationResult{
			Valid:         false,
			ErrorCategory: domain.CategoryFetchError,
			URL:           url,
			ProductTitle:  productTitle,
			Error:         message,
		}
	}

	text, err := ExtractText(html)
	if text == "" {
		message := domain.ErrEmptyDocument.Error()
		if err != nil {
			message = err.Error()
		}
		return &domain.VerificationResult{
			Valid:         false,
			ErrorCategory: domain.CategoryExtractError,
			URL:           url,
			ProductTitle:  productTitle,
			Error:         message,
		}
	}
	if err != nil {
		// Thin content is a signal of a likely placeholder page, not a failure.
		log.Printf("[VERIFY] warning for %s: %v (%d chars)", url, err, len(text))
	}

	product, err := s.finder.FindProduct(ctx, text, productTitle)
	if err != nil || product == nil {
		message := "Product not found on this page"
		if err != nil && !errors.Is(err, domain.ErrProductNotFound) {
			message = err.Error()
		}
		return &domain.VerificationResult{
			Valid:         false,
			ErrorCategory: domain.CategoryProductNotFound,
			URL:           url,
			ProductTitle:  productTitle,
			Message:       message,
		}
	}

	comparison := ComparePrices(product.Price, referencePrice)

	// A product match alone is sufficient when no price basis exists for
	// rejection; otherwise only a strictly cheaper price passes.
	valid := true
	if referencePrice != "" && comparison.Verdict != domain.VerdictUnableToCompare {
		valid = comparison.Verdict == domain.VerdictLower
	}

	log.Printf("[VERIFY] verified %.40q price=%s verdict=%s valid=%v",
		product.Title, product.Price, comparison.Verdict, valid)

	return &domain.VerificationResult{
		Valid:          valid,
		ErrorCategory:  domain.CategoryNone,
		URL:            url,
		ProductTitle:   product.Title,
		ReferencePrice: referencePrice,
		Product:        product,
		Comparison:     &comparison,
		Confidence:     confidenceFor(product.Price),
		VerifiedAt:     time.Now().UTC().Format(time.RFC3339),
	}
}

func confidenceFor(price string) string {
	if _, ok := ParsePrice(price); ok {
		return "high"
	}
	return "medium"
}
