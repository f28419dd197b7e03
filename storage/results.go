package storage

import (
	"slices"
	"strings"

	"github.com/poiesic/advisor/core"
)

// SortResults orders hits by score descending, breaking ties by catalog ID
// so that identical queries rank identically.
func SortResults(results []core.QueryResult) {
	slices.SortFunc(results, func(a, b core.QueryResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(a.CatalogID, b.CatalogID)
	})
}
