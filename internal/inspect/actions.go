package inspect

import (
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/seo-edge-proxy/internal/common"
	"github.com/dtnitsch/seo-edge-proxy/models"
	inspectpkg "github.com/dtnitsch/seo-edge-proxy/pkg/inspect"
)

func InspectAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))

	pageURL, err := common.ValidateURL(c.String("url"))
	if err != nil {
		return err
	}

	// A config is optional here; it only sharpens the issue checks.
	var exp inspectpkg.Expectations
	if path := c.String("config"); path != "" {
		cfg, err := models.LoadConfig(path)
		if err != nil {
			return err
		}
		exp = inspectpkg.Expectations{
			CanonicalDomain:   cfg.CanonicalDomain,
			PreviewHostSuffix: cfg.PreviewHostSuffix,
		}
	}

	logger.Info("Inspecting page", "url", pageURL)
	client := &http.Client{Timeout: c.Duration("timeout")}
	if client.Timeout == 0 {
		client.Timeout = 15 * time.Second
	}
	report, err := inspectpkg.Fetch(c.Context, client, pageURL, exp)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", pageURL, err)
	}

	data, err := common.Marshal(common.FilterResultFields(report, c.String("fields")), c.String("format"))
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	fmt.Println(string(data))

	if len(report.Issues) > 0 {
		logger.Warn("Page has SEO issues", "count", len(report.Issues))
	}
	return nil
}
