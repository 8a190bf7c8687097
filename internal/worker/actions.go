package worker

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/seo-edge-proxy/models"
	"github.com/dtnitsch/seo-edge-proxy/pkg/origin"
	"github.com/dtnitsch/seo-edge-proxy/pkg/serviceworker"
)

// WorkerAction prints the service worker the proxy would serve right now.
// With --fallback it prints the worker used when the origin is down.
func WorkerAction(c *cli.Context) error {
	if c.Bool("fallback") {
		fmt.Print(string(serviceworker.Fallback()))
		return nil
	}

	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	var upstream []byte
	if cfg.ServiceWorker.VersionPolicy == models.VersionPolicyUpstream {
		if upstream, err = fetchUpstream(c, cfg); err != nil {
			return err
		}
	}

	version := serviceworker.ResolveVersion(cfg.ServiceWorker, upstream, time.Now())
	fmt.Print(string(serviceworker.Synthesize(version)))
	return nil
}

func fetchUpstream(c *cli.Context, cfg *models.ProxyConfig) ([]byte, error) {
	client, err := origin.NewClient(cfg.Origin, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	resp, err := client.Get(c.Context, cfg.ServiceWorker.Paths[0], "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch service worker, status code: %d", resp.StatusCode)
	}
	body, err := origin.DecodedBody(resp)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}
