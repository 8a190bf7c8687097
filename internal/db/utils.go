package db

import (
	"fmt"

	dbpkg "github.com/dtnitsch/seo-edge-proxy/pkg/db"
	"github.com/urfave/cli/v2"
)

// openDatabase opens the request log named by --db, or the default one next
// to the binary.
func openDatabase(c *cli.Context) (*dbpkg.DB, error) {
	database, err := dbpkg.Open(c.String("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// metadataLabel renders the tri-state metadata outcome of a request.
func metadataLabel(ok *bool) string {
	switch {
	case ok == nil:
		return "-"
	case *ok:
		return "ok"
	default:
		return "failed"
	}
}
