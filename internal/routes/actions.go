package routes

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/seo-edge-proxy/internal/common"
	"github.com/dtnitsch/seo-edge-proxy/models"
	"github.com/dtnitsch/seo-edge-proxy/pkg/metadata"
	"github.com/dtnitsch/seo-edge-proxy/pkg/proxy"
)

// Resolution explains how the proxy would serve a GET for Path.
type Resolution struct {
	Path             string `json:"path" yaml:"path"`
	Route            string `json:"route" yaml:"route"`
	Pattern          string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	MetadataEndpoint string `json:"metadata_endpoint,omitempty" yaml:"metadata_endpoint,omitempty"`
	MetadataURL      string `json:"metadata_url,omitempty" yaml:"metadata_url,omitempty"`
}

func RoutesAction(c *cli.Context) error {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	var out any = cfg.Routes
	if c.NArg() > 0 {
		resolved, err := Resolve(cfg, c.Args().Slice())
		if err != nil {
			return err
		}
		out = resolved
	}

	data, err := common.Marshal(out, c.String("format"))
	if err != nil {
		return fmt.Errorf("failed to marshal routes: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// Resolve classifies each path exactly as the running proxy would.
func Resolve(cfg *models.ProxyConfig, paths []string) ([]Resolution, error) {
	h, err := proxy.New(proxy.Options{Config: cfg})
	if err != nil {
		return nil, err
	}

	out := make([]Resolution, 0, len(paths))
	for _, p := range paths {
		route := h.Classify(httptest.NewRequest(http.MethodGet, p, nil))
		res := Resolution{Path: p, Route: route.Name()}
		if pr, ok := route.(proxy.PageRoute); ok {
			res.Pattern = pr.Rule.PathPattern
			res.MetadataEndpoint = pr.Rule.MetadataEndpoint
			res.MetadataURL = metadata.EndpointURL(pr.Rule.MetadataEndpoint, metadata.ResourceID(p))
		}
		out = append(out, res)
	}
	return out, nil
}
