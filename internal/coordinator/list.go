package coordinator

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
)

// ItemsFetcher retrieves the detailed items of a list.
type ItemsFetcher interface {
	GetDetailedItems(ctx context.Context, list string) (int, []anylist.Item, error)
}

// NewList creates a coordinator for the items of the specified list. A
// status other than 200 fails the refresh with an [UpdateFailedError].
func NewList(
	client ItemsFetcher,
	list string,
	interval time.Duration,
	logger *slog.Logger,
) *Coordinator[[]anylist.Item] {
	fetch := func(ctx context.Context) ([]anylist.Item, error) {
		code, items, err := client.GetDetailedItems(ctx, list)
		if err != nil {
			return nil, NewUpdateFailedError(err, "error fetching data for list '%s'", list)
		}
		if code != http.StatusOK {
			return nil, NewUpdateFailedError(nil, "error fetching data for list '%s': code %d", list, code)
		}
		return items, nil
	}
	return New("Anylist "+list, interval, fetch, logger)
}
