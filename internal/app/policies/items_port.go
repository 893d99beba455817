package policies

import (
	"context"

	domainitems "donateo/internal/domain/items"
)

// ItemCatalog looks up items listed for donation.
type ItemCatalog interface {
	Item(ctx context.Context, itemID string) (domainitems.Snapshot, error)
}
