package domain

import (
	"fmt"
	"time"
)

// PartitionKey identifies one calendar-month ingestion window ("2023-07").
type PartitionKey string

const partitionLayout = "2006-01"

// ParsePartitionKey validates a YYYY-MM key.
func ParsePartitionKey(s string) (PartitionKey, error) {
	if _, err := time.Parse(partitionLayout, s); err != nil {
		return "", fmt.Errorf("invalid partition key %q: %w", s, err)
	}
	return PartitionKey(s), nil
}

// PartitionFor returns the key of the month containing t.
func PartitionFor(t time.Time) PartitionKey {
	return PartitionKey(t.UTC().Format(partitionLayout))
}

// Window returns the half-open UTC interval [start, end) of the month.
func (k PartitionKey) Window() (time.Time, time.Time, error) {
	start, err := time.Parse(partitionLayout, string(k))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid partition key %q: %w", k, err)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// PartitionsBetween enumerates every month from epoch up to and including
// the month containing now, in chronological order.
func PartitionsBetween(epoch PartitionKey, now time.Time) []PartitionKey {
	start, err := time.Parse(partitionLayout, string(epoch))
	if err != nil {
		return nil
	}

	last := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	var keys []PartitionKey
	for cur := start; !cur.After(last); cur = cur.AddDate(0, 1, 0) {
		keys = append(keys, PartitionKey(cur.Format(partitionLayout)))
	}
	return keys
}
