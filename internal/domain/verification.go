package domain

// Verdict is the tri-state (plus unknown) outcome of a price comparison.
type Verdict string

const (
	VerdictLower           Verdict = "lower"
	VerdictHigher          Verdict = "higher"
	VerdictSame            Verdict = "same"
	VerdictUnableToCompare Verdict = "unable_to_compare"
)

// PriceComparison is the result of comparing a scraped price against a
// reference price. Savings is non-nil exactly when Verdict is VerdictLower.
type PriceComparison struct {
	Verdict Verdict `json:"verdict"`
	Savings *string `json:"savings"`
}

// VerificationResult is the terminal output of one link verification.
// It is constructed once per request and never mutated after return.
type VerificationResult struct {
	Valid         bool          `json:"valid"`
	ErrorCategory ErrorCategory `json:"errorCategory"`

	URL            string `json:"url,omitempty"`
	ProductTitle   string `json:"productTitle,omitempty"`
	ReferencePrice string `json:"referencePrice,omitempty"`

	Product    *ProductRecord   `json:"product,omitempty"`
	Comparison *PriceComparison `json:"comparison,omitempty"`

	// Confidence is "high" when the oracle reported a listed price, else "medium".
	Confidence string `json:"confidence,omitempty"`
	VerifiedAt string `json:"verifiedAt,omitempty"`

	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// BatchVerifyResult aggregates per-link results for a batch request.
type BatchVerifyResult struct {
	Results    []*VerificationResult `json:"results"`
	ValidCount int                   `json:"validCount"`
	TotalCount int                   `json:"totalCount"`
}
