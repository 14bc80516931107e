package pipeline

import (
	"context"

	"github.com/LK-Customs/Pingcrafty/internal/blacklist"
	"github.com/LK-Customs/Pingcrafty/internal/result"
)

// FilterHook drops results whose address matches the secondary
// blacklist — a second chance to exclude ranges that only became
// known to be unwanted after the target source already queued them.
type FilterHook struct {
	list *blacklist.Blacklist
}

// NewFilterHook wraps an already-constructed blacklist.
func NewFilterHook(list *blacklist.Blacklist) *FilterHook {
	return &FilterHook{list: list}
}

func (h *FilterHook) Name() string { return "filter" }

func (h *FilterHook) Initialize(ctx context.Context) error { return nil }

func (h *FilterHook) Process(ctx context.Context, r *result.ScanResult) (Decision, error) {
	if h.list.Contains(r.IP) {
		return Drop, nil
	}
	return Continue, nil
}

func (h *FilterHook) Finalize() error { return nil }
