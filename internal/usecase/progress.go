package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ObservationScanner/internal/domain"
	"ObservationScanner/internal/ports"
)

const progressBarWidth = 30

// ProgressReport renders a per-year backfill breakdown: completed and
// pending months, the next partition to process, and cross-run totals.
func ProgressReport(store ports.CheckpointStore, epoch domain.PartitionKey, now time.Time) string {
	all := domain.PartitionsBetween(epoch, now)
	completed := map[domain.PartitionKey]struct{}{}
	for _, key := range store.Completed() {
		completed[key] = struct{}{}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Backfill progress: %d/%d partitions", len(completed), len(all))
	if len(all) > 0 {
		fmt.Fprintf(&b, " (%.1f%%)", float64(len(completed))/float64(len(all))*100)
	}
	fmt.Fprintf(&b, "\nTotal observations ingested: %d\n", store.TotalIngested())
	if last := store.LastRun(); !last.IsZero() {
		fmt.Fprintf(&b, "Last run: %s\n", last.Format("2006-01-02 15:04:05"))
	}

	years := map[string][]domain.PartitionKey{}
	for _, key := range all {
		year := string(key)[:4]
		years[year] = append(years[year], key)
	}
	yearNames := make([]string, 0, len(years))
	for year := range years {
		yearNames = append(yearNames, year)
	}
	sort.Strings(yearNames)

	for _, year := range yearNames {
		months := years[year]
		done := 0
		var pending []string
		for _, key := range months {
			if _, ok := completed[key]; ok {
				done++
			} else {
				pending = append(pending, strings.TrimPrefix(string(key), year+"-"))
			}
		}

		filled := progressBarWidth * done / len(months)
		bar := strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled)
		fmt.Fprintf(&b, "\n%s: [%s] %d/%d", year, bar, done, len(months))
		if len(pending) > 0 {
			fmt.Fprintf(&b, "\n  pending: %s", strings.Join(pending, ", "))
		}
	}

	b.WriteString("\n\n")
	if next, ok := store.NextPending(now); ok {
		fmt.Fprintf(&b, "Next partition: %s\n", next)
	} else {
		b.WriteString("All partitions completed.\n")
	}
	return b.String()
}
