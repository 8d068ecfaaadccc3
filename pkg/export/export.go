// Package export defines sinks that receive classified postings after they
// have been written to the ledger.
package export

import (
	"context"

	"github.com/ArionMiles/beanbill/pkg/api"
)

// Exporter receives the postings imported from one bill file.
type Exporter interface {
	Name() string
	Export(ctx context.Context, postings []api.Posting) error
}
