package quote

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/abdulmahfud/ongkir-service/internal/expedition"
	"github.com/abdulmahfud/ongkir-service/internal/observability"
)

// CostFetcher is the slice of the backend client the dispatcher needs.
type CostFetcher interface {
	ShipmentCost(ctx context.Context, d expedition.Descriptor, origin, destination string, weightGrams int) (json.RawMessage, error)
}

// Dispatcher issues one cost-quote call per enabled vendor, all
// started together, and waits for every call to settle. A failing
// vendor is recorded as data in its outcome and never aborts the
// siblings.
type Dispatcher struct {
	client  CostFetcher
	vendors []expedition.Descriptor
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDispatcher constructs a Dispatcher over the given vendor set.
// Metrics may be nil.
func NewDispatcher(client CostFetcher, vendors []expedition.Descriptor, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{client: client, vendors: vendors, logger: logger, metrics: metrics}
}

// Dispatch runs the fan-out. It fails fast with ErrMissingLocation
// before any network call when the request cannot name both ends of
// the route; afterwards it always returns one outcome per vendor in
// catalogue order.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) ([]Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(d.vendors))

	// Closures write to disjoint slots and never return an error, so
	// the group only joins; no sibling is cancelled by a failure.
	g, ctx := errgroup.WithContext(ctx)
	for i, desc := range d.vendors {
		i, desc := i, desc
		g.Go(func() error {
			origin := req.Origin.Name(desc.OriginScope)
			destination := req.Destination.Name(desc.DestScope)
			raw, err := d.client.ShipmentCost(ctx, desc, origin, destination, req.WeightGrams)
			if err != nil {
				d.logger.Warn("vendor quote failed",
					slog.String("vendor", string(desc.Vendor)),
					slog.Any("error", err))
				d.metrics.VendorFailure(string(desc.Vendor))
				outcomes[i] = Outcome{Vendor: desc.Vendor, Err: err}
				return nil
			}
			outcomes[i] = Outcome{Vendor: desc.Vendor, Raw: raw}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}
