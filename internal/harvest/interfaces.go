package harvest

import (
	"context"
	"time"
)

// Fetcher resolves a reference to raw bytes, or fails with a *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (Document, error)
}

// SearchClient answers one page of a paginated, credit-metered search.
type SearchClient interface {
	Search(ctx context.Context, query string, page int) (SearchPage, error)
}

// LeadSink receives the finished, key-sorted batch of records.
type LeadSink interface {
	Write(ctx context.Context, records []LeadRecord) error
}

// Publisher pushes completion payloads to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Archive persists raw fetched bodies for later inspection.
type Archive interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
