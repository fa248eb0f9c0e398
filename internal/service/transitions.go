package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/campus-print-api/internal/models"
)

// TransitionsPermissive lets any non-terminal status move to any other status.
const TransitionsPermissive = "permissive"

// TransitionPolicy is the set of allowed status changes.
type TransitionPolicy struct {
	permissive bool
	allowed    map[models.OrderStatus]map[models.OrderStatus]struct{}
}

// DefaultTransitionPolicy is the strict lifecycle: pending to processing or
// cancelled, processing to completed or cancelled.
func DefaultTransitionPolicy() TransitionPolicy {
	p := TransitionPolicy{allowed: map[models.OrderStatus]map[models.OrderStatus]struct{}{}}
	p.allow(models.OrderStatusPending, models.OrderStatusProcessing)
	p.allow(models.OrderStatusPending, models.OrderStatusCancelled)
	p.allow(models.OrderStatusProcessing, models.OrderStatusCompleted)
	p.allow(models.OrderStatusProcessing, models.OrderStatusCancelled)
	return p
}

// ParseTransitionPolicy reads a comma separated list of from:to pairs, or the
// word "permissive". An empty value yields the default policy. Pairs leaving a
// terminal status are rejected.
func ParseTransitionPolicy(raw string) (TransitionPolicy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultTransitionPolicy(), nil
	}
	if strings.EqualFold(raw, TransitionsPermissive) {
		return TransitionPolicy{permissive: true}, nil
	}

	p := TransitionPolicy{allowed: map[models.OrderStatus]map[models.OrderStatus]struct{}{}}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ":")
		if len(parts) != 2 {
			return TransitionPolicy{}, fmt.Errorf("invalid transition %q, want from:to", pair)
		}
		from := models.OrderStatus(strings.ToLower(strings.TrimSpace(parts[0])))
		to := models.OrderStatus(strings.ToLower(strings.TrimSpace(parts[1])))
		if !from.Valid() || !to.Valid() {
			return TransitionPolicy{}, fmt.Errorf("invalid transition %q, unknown status", pair)
		}
		if from.Terminal() && from != to {
			return TransitionPolicy{}, fmt.Errorf("invalid transition %q, %s is terminal", pair, from)
		}
		p.allow(from, to)
	}
	return p, nil
}

func (p *TransitionPolicy) allow(from, to models.OrderStatus) {
	if p.allowed[from] == nil {
		p.allowed[from] = map[models.OrderStatus]struct{}{}
	}
	p.allowed[from][to] = struct{}{}
}

// Allows reports whether an order may move from one status to another.
// Re-applying the current status is always allowed and changes nothing.
func (p TransitionPolicy) Allows(from, to models.OrderStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if p.permissive {
		return !from.Terminal()
	}
	_, ok := p.allowed[from][to]
	return ok
}
