// Package categorize defines the port used to label expenses with a
// spending category.
package categorize

import "context"

// Result is the label returned for an expense. Confidence is advisory and
// lies in [0,1].
type Result struct {
	Category   string
	Confidence float64
}

// Categorizer assigns a free-text category to a purchase. Implementations
// make a single attempt per call and return a *core.CategorizationError on
// failure.
type Categorizer interface {
	Categorize(ctx context.Context, shop, items string) (Result, error)
}

// Func adapts a function to the Categorizer interface.
type Func func(ctx context.Context, shop, items string) (Result, error)

func (f Func) Categorize(ctx context.Context, shop, items string) (Result, error) {
	return f(ctx, shop, items)
}
