package catalog

import (
	"fmt"
	"time"
)

const (
	// DefaultBaseURL is the Vega API of the St. Louis County Library.
	DefaultBaseURL = "https://na2.iiivega.com/api"
	// DefaultCustomerDomain identifies the library tenant to the API.
	DefaultCustomerDomain = "slouc.na2.iiivega.com"

	// DefaultPageSize is the largest page the search endpoint accepts.
	DefaultPageSize = 1000
	// DefaultMaxResults is the search window of the backing index; deeper
	// pages are rejected, hence the partitioning.
	DefaultMaxResults = 10_000

	// DefaultLocationID is the Weber Road branch.
	DefaultLocationID = 59
)

// DefaultPartitions returns the title prefixes used to split the catalog
// into searches that each fit the result window: A* through Z*, then 0*.
func DefaultPartitions() []string {
	partitions := make([]string, 0, 27)
	for c := 'A'; c <= 'Z'; c++ {
		partitions = append(partitions, fmt.Sprintf("%c*", c))
	}
	return append(partitions, "0*")
}

// Config holds catalog client and fetch settings.
type Config struct {
	BaseURL        string
	CustomerDomain string

	Partitions      []string
	PageSize        int
	MaxResults      int
	LocationIDs     int // 0 means no location filter
	MaterialTypeIDs int // 0 means all material types

	RequestsPerSecond float64 // 0 disables rate limiting
	MaxAttempts       int
	BaseDelay         time.Duration
	Timeout           time.Duration
}

// DefaultConfig returns the settings used against the production catalog.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		CustomerDomain:    DefaultCustomerDomain,
		Partitions:        DefaultPartitions(),
		PageSize:          DefaultPageSize,
		MaxResults:        DefaultMaxResults,
		LocationIDs:       DefaultLocationID,
		RequestsPerSecond: 5,
		MaxAttempts:       6,
		BaseDelay:         time.Second,
		Timeout:           60 * time.Second,
	}
}

// maxPages is the number of pages of one partition that fit the window.
func (c Config) maxPages(totalPages int) int {
	limit := 1
	if c.PageSize > 0 && c.MaxResults > 0 {
		limit = max(1, c.MaxResults/c.PageSize)
	}
	return min(totalPages, limit)
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.CustomerDomain == "" {
		c.CustomerDomain = d.CustomerDomain
	}
	if len(c.Partitions) == 0 {
		c.Partitions = d.Partitions
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.MaxResults <= 0 {
		c.MaxResults = d.MaxResults
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
}
