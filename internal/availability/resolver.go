package availability

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/vet-clinic-scheduling/internal/clinic"
	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

// Compose applies rules to the calendar's open set: every applicable
// BLOCKED/VACATION interval is removed, then every applicable OVERRIDE
// interval is added back. The result does not depend on rule order.
func Compose(open interval.Set, rules []Rule, staffID *uuid.UUID) interval.Set {
	var removed, restored []interval.Interval
	for i := range rules {
		r := &rules[i]
		if !r.Active() || !r.AppliesTo(staffID) {
			continue
		}
		switch {
		case r.Kind.Subtracts():
			removed = append(removed, r.Interval())
		case r.Kind == KindOverride:
			restored = append(restored, r.Interval())
		}
	}

	remaining := interval.Subtract(open, interval.Normalize(removed...))
	return interval.Union(remaining, interval.Normalize(restored...))
}

// Resolver produces the bookable open set for a clinic or one staff member.
type Resolver struct {
	rules Repository
}

func NewResolver(rules Repository) *Resolver {
	return &Resolver{rules: rules}
}

// OpenIntervals returns calendar hours minus blocks plus overrides inside
// window, for staffID (nil = clinic level, clinic-wide rules only).
func (r *Resolver) OpenIntervals(ctx context.Context, c *clinic.Clinic, staffID *uuid.UUID, window interval.Interval) (interval.Set, error) {
	if !window.Valid() {
		return interval.Set{}, nil
	}

	open := c.OpenIntervalsBetween(window)

	rules, err := r.rules.ListActive(ctx, c.ID, staffID, window)
	if err != nil {
		return nil, fmt.Errorf("load availability rules: %w", err)
	}

	return Compose(open, rules, staffID).Clip(window), nil
}
