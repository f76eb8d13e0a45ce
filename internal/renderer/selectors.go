package renderer

// X.com DOM selectors
// These are isolated here because X changes their DOM frequently
// Update these when rendering breaks

const (
	// ThreadSection wraps the conversation on a status page
	ThreadSection = `section[role="region"]`

	// threadCellXPath selects the n-th (1-based) cell of the conversation.
	// Cell n-1 is the tweet at thread offset n-1.
	threadCellXPath = `(//section//div[@data-testid="cellInnerDiv"])[%d]`
)
