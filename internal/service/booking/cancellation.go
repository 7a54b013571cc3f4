package booking

import (
	"context"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
)

const DefaultCutoffHours = 24

type MetadataSource interface {
	FlightMetadata(ctx context.Context, flightID string) (*domain.FlightMetadata, bool)
}

// CancellationPolicy decides whether a booking may still be cancelled by its
// owner. Departure is midnight of the flight date in the configured location.
type CancellationPolicy struct {
	metadata    MetadataSource
	cutoffHours int64
	location    *time.Location
	now         func() time.Time
}

type PolicyOption func(*CancellationPolicy)

func WithClock(now func() time.Time) PolicyOption {
	return func(p *CancellationPolicy) {
		p.now = now
	}
}

func WithLocation(loc *time.Location) PolicyOption {
	return func(p *CancellationPolicy) {
		if loc != nil {
			p.location = loc
		}
	}
}

func WithCutoffHours(hours int) PolicyOption {
	return func(p *CancellationPolicy) {
		if hours > 0 {
			p.cutoffHours = int64(hours)
		}
	}
}

func NewCancellationPolicy(metadata MetadataSource, opts ...PolicyOption) *CancellationPolicy {
	p := &CancellationPolicy{
		metadata:    metadata,
		cutoffHours: DefaultCutoffHours,
		location:    time.Local,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check returns nil when the flight departs at least the cutoff from now.
// Unknown or malformed schedule data rejects the cancellation.
func (p *CancellationPolicy) Check(ctx context.Context, flightID string) error {
	meta, ok := p.metadata.FlightMetadata(ctx, flightID)
	if !ok || meta == nil || meta.Date == "" {
		return domain.Reject(domain.ErrInventoryUnreachable, "flight %s", flightID)
	}

	departure, err := time.ParseInLocation(domain.DateLayout, meta.Date, p.location)
	if err != nil {
		return domain.RejectWrap(domain.ErrInventoryUnreachable, err, "flight %s has malformed date %q", flightID, meta.Date)
	}

	hours := int64(departure.Sub(p.now()) / time.Hour)
	if hours < p.cutoffHours {
		return domain.Reject(domain.ErrCancellationWindowClosed,
			"%d hours before departure, at least %d required", hours, p.cutoffHours)
	}
	return nil
}
