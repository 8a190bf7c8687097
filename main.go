package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/seo-edge-proxy/internal/db"
	"github.com/dtnitsch/seo-edge-proxy/internal/inspect"
	"github.com/dtnitsch/seo-edge-proxy/internal/routes"
	"github.com/dtnitsch/seo-edge-proxy/internal/serve"
	"github.com/dtnitsch/seo-edge-proxy/internal/worker"
	"github.com/dtnitsch/seo-edge-proxy/pkg/help"
)

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config.yaml",
		Usage:   "path to the proxy config file",
		EnvVars: []string{"SEO_PROXY_CONFIG"},
	}
	formatFlag := &cli.StringFlag{
		Name:  "format",
		Value: "json",
		Usage: "output format: json or yaml",
	}
	quietFlag := &cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Usage:   "only log errors",
	}
	dbFlag := &cli.StringFlag{
		Name:  "db",
		Usage: "request log database path (default: next to the binary)",
	}

	app := &cli.App{
		Name:  "seo-edge-proxy",
		Usage: "SEO rewriting reverse proxy for WeWeb sites",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the proxy",
				Flags: []cli.Flag{
					configFlag,
					quietFlag,
					dbFlag,
					&cli.StringFlag{Name: "listen", Value: ":8080", Usage: "proxy listen address (PORT overrides the port)"},
					&cli.StringFlag{Name: "admin-listen", Value: ":9090", Usage: "health and metrics listen address, empty to disable"},
					&cli.BoolFlag{Name: "no-db", Usage: "do not record requests"},
				},
				Action: serve.ServeAction,
			},
			{
				Name:      "routes",
				Usage:     "Show configured routes, or how each given path would be routed",
				ArgsUsage: "[path...]",
				Flags:     []cli.Flag{configFlag, formatFlag},
				Action:    routes.RoutesAction,
			},
			{
				Name:  "inspect",
				Usage: "Report the SEO tags of a page, usually fetched through the proxy",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "page URL", Required: true},
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "optional config used to check canonical links"},
					&cli.StringFlag{Name: "fields", Usage: "comma separated report fields to keep"},
					&cli.DurationFlag{Name: "timeout", Value: 15 * time.Second, Usage: "request timeout"},
					formatFlag,
					quietFlag,
				},
				Action: inspect.InspectAction,
			},
			{
				Name:  "worker",
				Usage: "Print the service worker the proxy serves",
				Flags: []cli.Flag{
					configFlag,
					&cli.BoolFlag{Name: "fallback", Usage: "print the fallback worker instead"},
				},
				Action: worker.WorkerAction,
			},
			{
				Name:  "db",
				Usage: "Query the request log",
				Subcommands: []*cli.Command{
					{
						Name:   "requests",
						Usage:  "List recent requests",
						Flags:  []cli.Flag{dbFlag, &cli.IntFlag{Name: "limit", Value: 20, Usage: "rows to show"}},
						Action: db.RequestsAction,
					},
					{
						Name:   "stats",
						Usage:  "Requests and metadata misses per route",
						Flags:  []cli.Flag{dbFlag},
						Action: db.StatsAction,
					},
				},
			},
			{
				Name:  "quickstart",
				Usage: "Print a quick start guide",
				Action: func(c *cli.Context) error {
					fmt.Print(help.ColdstartYAML)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
