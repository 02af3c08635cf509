package counter

import (
	"context"
	"strconv"

	"github.com/goupclub/goup/internal/pkg/cache"
)

const notifyOutcomesKey = "payments:counters:notify"

// Notification outcome fields, stored as "<provider>:<outcome>" in one Redis
// hash so a single HGETALL serves the operator view.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// AddNotifyOutcome increments the counter for one webhook delivery outcome.
// Counter loss is acceptable; the payment records stay authoritative.
func AddNotifyOutcome(provider, outcome string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, notifyOutcomesKey, provider+":"+outcome, 1).Err()
}

// NotifyOutcomes returns all outcome counters keyed "<provider>:<outcome>".
func NotifyOutcomes() (map[string]int64, error) {
	ctx := context.Background()
	raw, err := cache.GetClient().HGetAll(ctx, notifyOutcomesKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		out[field] = n
	}
	return out, nil
}
