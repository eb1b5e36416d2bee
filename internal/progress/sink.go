package progress

import "context"

// Sink consumes batches of progress events. Implementations must tolerate
// repeated Close calls and must not retain the batch slice.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}
