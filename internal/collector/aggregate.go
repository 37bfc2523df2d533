package collector

import (
	"sort"

	"github.com/tinytelemetry/podtrail/internal/model"
)

// ByteShare divides the total byte budget evenly across k sources.
// The shares never sum to more than total.
func ByteShare(total, k int) int {
	if k <= 0 || total <= 0 {
		return 0
	}
	return total / k
}

// Merge concatenates per-source entries, orders them by time and removes
// entries without a message, which only served as watermark anchors.
// Ties keep source order.
func Merge(perSource [][]model.Entry) []model.Entry {
	n := 0
	for _, entries := range perSource {
		n += len(entries)
	}

	merged := make([]model.Entry, 0, n)
	for _, entries := range perSource {
		for _, e := range entries {
			if e.Message == "" {
				continue
			}
			merged = append(merged, e)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Time < merged[j].Time
	})
	return merged
}
