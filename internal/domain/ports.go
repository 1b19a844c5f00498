package domain

import "context"

// PageFetcher retrieves the raw HTML of a retailer page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ProductFinder is the product matching oracle: given page text and a product
// query it returns the matched product attributes or ErrProductNotFound.
type ProductFinder interface {
	FindProduct(ctx context.Context, pageText, query string) (*ProductRecord, error)
}

// SecretProvider resolves named credentials. Failures are fatal for the
// calling request; no retries are applied at this boundary.
type SecretProvider interface {
	GetSecret(name string) (string, error)
}
