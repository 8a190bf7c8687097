package db

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// RequestsAction lists the most recent proxied requests.
func RequestsAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer database.Close()

	entries, err := database.ListRequests(c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list requests: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No requests recorded")
		return nil
	}

	fmt.Printf("%-20s %-7s %-15s %-6s %-9s %-8s %-40s\n",
		"Created", "Method", "Route", "Status", "Metadata", "Millis", "Path")
	fmt.Println(strings.Repeat("-", 112))

	for _, e := range entries {
		fmt.Printf("%-20s %-7s %-15s %-6d %-9s %-8d %-40s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Method,
			e.Route,
			e.Status,
			metadataLabel(e.MetadataOK),
			e.Duration.Milliseconds(),
			e.Path,
		)
	}

	fmt.Printf("\nTotal: %d requests\n", len(entries))
	fmt.Printf("\nTip: Use 'seo-edge-proxy db stats' for per-route totals\n")

	return nil
}

// StatsAction prints request and metadata-miss counts per route.
func StatsAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer database.Close()

	counts, err := database.RouteCounts()
	if err != nil {
		return fmt.Errorf("failed to count requests: %w", err)
	}

	if len(counts) == 0 {
		fmt.Println("No requests recorded")
		return nil
	}

	fmt.Printf("%-15s %-10s %-15s\n", "Route", "Requests", "Metadata Misses")
	fmt.Println(strings.Repeat("-", 42))
	for _, rc := range counts {
		fmt.Printf("%-15s %-10d %-15d\n", rc.Route, rc.Requests, rc.MetadataMisses)
	}
	return nil
}
