package domain

// ProductRecord holds the structured attributes the matching oracle extracted
// for one product on a retailer page. Extras carries any additional key-value
// pairs the oracle volunteered (SKU, model number, etc.).
type ProductRecord struct {
	Title        string            `json:"title"`
	Brand        string            `json:"brand"`
	Price        string            `json:"price"`
	Description  string            `json:"description"`
	Availability string            `json:"availability"`
	Extras       map[string]string `json:"extras,omitempty"`
}

// Placeholder values used when the oracle omits a field.
const (
	BrandNotAvailable        = "N/A"
	PriceNotListed           = "Not listed"
	AvailabilityNotSpecified = "Not specified"
)

// VerifyRequest is a single link verification request.
type VerifyRequest struct {
	URL            string `json:"url" binding:"required"`
	ProductTitle   string `json:"productTitle" binding:"required"`
	ReferencePrice string `json:"referencePrice,omitempty"`
}
