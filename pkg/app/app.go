package app

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/statica-io/statica/pkg/config"
	"github.com/statica-io/statica/pkg/endpoint"
	"github.com/statica-io/statica/pkg/listener"
	"github.com/statica-io/statica/pkg/metrics"
	"github.com/statica-io/statica/pkg/responder"
	"github.com/statica-io/statica/pkg/shutdown"
	"github.com/statica-io/statica/pkg/signals"
	"github.com/statica-io/statica/pkg/ssi"
	"github.com/statica-io/statica/pkg/transform"
	"github.com/statica-io/statica/pkg/util"
	"github.com/statica-io/statica/pkg/version"
)

var (
	listens       cli.StringSlice
	configPath    string
	ssiSource     string
	forcedCharset string
	logFormat     string
	noClipboard   bool
	noCompression bool
	cors          bool
	single        bool
	noBanner      bool
	metricsConfig metrics.Config
)

func New() *cli.App {
	app := cli.NewApp()
	app.Name = "statica"
	app.Usage = "Serve static files from one or more endpoints, with SSI rewriting"
	app.ArgsUsage = "[directory]"
	app.Version = fmt.Sprintf("%s (%s)", version.Version, version.GitCommit)
	app.Flags = []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "listen",
			Aliases:     []string{"l"},
			Usage:       "Listen endpoint: a port number, tcp://host:port, unix:/path, or pipe:\\\\.\\name. May be repeated.",
			Destination: &listens,
			EnvVars:     []string{"PORT"},
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to a config file (default is discovery of serve.json, now.json, package.json)",
			Destination: &configPath,
			EnvVars:     []string{"STATICA_CONFIG"},
		},
		&cli.StringFlag{
			Name:        "ssi",
			Usage:       "Source URL for resolving server-side-include directives in HTML responses",
			Destination: &ssiSource,
			EnvVars:     []string{"STATICA_SSI"},
		},
		&cli.StringFlag{
			Name:        "charset",
			Usage:       "Force a charset for text responses instead of detecting it per file",
			Destination: &forcedCharset,
			EnvVars:     []string{"STATICA_CHARSET"},
		},
		&cli.BoolFlag{
			Name:    "symlinks",
			Aliases: []string{"S"},
			Usage:   "Follow symlinks instead of rejecting them",
			EnvVars: []string{"STATICA_SYMLINKS"},
		},
		&cli.BoolFlag{
			Name:        "single",
			Aliases:     []string{"s"},
			Usage:       "Rewrite all not-found requests to the root index.html (single-page applications)",
			Destination: &single,
			EnvVars:     []string{"STATICA_SINGLE"},
		},
		&cli.BoolFlag{
			Name:        "cors",
			Aliases:     []string{"C"},
			Usage:       "Send Access-Control-Allow-Origin: * with every response",
			Destination: &cors,
			EnvVars:     []string{"STATICA_CORS"},
		},
		&cli.BoolFlag{
			Name:        "no-clipboard",
			Aliases:     []string{"n"},
			Usage:       "Do not copy the local address to the clipboard",
			Destination: &noClipboard,
			EnvVars:     []string{"STATICA_NO_CLIPBOARD"},
		},
		&cli.BoolFlag{
			Name:        "no-compression",
			Aliases:     []string{"u"},
			Usage:       "Do not compress responses",
			Destination: &noCompression,
			EnvVars:     []string{"STATICA_NO_COMPRESSION"},
		},
		&cli.BoolFlag{
			Name:        "no-banner",
			Usage:       "Suppress the decorative startup banner",
			Destination: &noBanner,
			EnvVars:     []string{"NO_BANNER"},
		},
		&cli.BoolFlag{
			Name:    "no-update-check",
			Usage:   "Accepted for compatibility; release update checking is not performed",
			Hidden:  true,
			EnvVars: []string{"NO_UPDATE_CHECK"},
		},
		&cli.StringFlag{
			Name:        "metrics-bind-address",
			Usage:       "The address the metric endpoint binds to. Set 0 to disable metrics serving.",
			Destination: &metricsConfig.ServerAddress,
			Value:       "0",
			EnvVars:     []string{"STATICA_METRICS_BIND_ADDRESS"},
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format to use. Options are 'plain' or 'json'.",
			Destination: &logFormat,
			Value:       "plain",
			EnvVars:     []string{"STATICA_LOG_FORMAT"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			EnvVars: []string{"STATICA_DEBUG"},
		},
	}
	app.Action = run
	return app
}

func run(c *cli.Context) error {
	if logFormat == "plain" {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	} else if logFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		return fmt.Errorf("invalid log format: %s", logFormat)
	}

	if c.Bool("debug") {
		logrus.SetLevel(logrus.TraceLevel)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg, err := config.Load(cwd, configPath)
	if err != nil {
		return err
	}
	mergeFlags(c, cfg)

	root := cfg.Public
	if !filepath.IsAbs(root) {
		root = filepath.Join(cwd, root)
	}
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return fmt.Errorf("public directory %s does not exist", root)
	}

	handler, err := buildHandler(root, cfg)
	if err != nil {
		return err
	}

	endpoints, err := parseEndpoints(cfg)
	if err != nil {
		return err
	}

	ctx := signals.SetupSignalContext()
	registry := shutdown.NewRegistry()

	metrics.RegisterCoreCollectors()
	go metrics.Serve(ctx, metricsConfig)

	if !noBanner {
		listener.Banner(version.Program, version.Version)
	}

	var g errgroup.Group
	for i, ep := range endpoints {
		l, err := listener.Bind(ep, handler)
		if err != nil {
			// A bind failure on one endpoint aborts the whole startup.
			registry.Run()
			return err
		}
		registry.Register(l.Close)
		l.Announce(i == 0 && !noClipboard)
		g.Go(l.Serve)
	}

	go func() {
		<-ctx.Done()
		registry.Run()
	}()

	return g.Wait()
}

func mergeFlags(c *cli.Context, cfg *config.Config) {
	if dir := c.Args().First(); dir != "" {
		cfg.Public = dir
	}
	if ssiSource != "" {
		cfg.SSI = ssiSource
	}
	if forcedCharset != "" {
		cfg.Charset = forcedCharset
	}
	if c.IsSet("symlinks") {
		cfg.Symlinks = c.Bool("symlinks")
	}
	if single {
		cfg.RenderSingle = true
	}
	if cors {
		cfg.Headers = append(cfg.Headers, config.HeaderRule{
			Source:  "**/*",
			Headers: []config.Header{{Key: "Access-Control-Allow-Origin", Value: "*"}},
		})
	}
}

func buildHandler(root string, cfg *config.Config) (http.Handler, error) {
	var rewriter *ssi.Rewriter
	if cfg.SSI != "" {
		if !util.IsWebURL(cfg.SSI) {
			// An invalid source disables the feature instead of aborting
			// startup.
			logrus.Errorf("invalid ssi source %q, continuing without SSI", cfg.SSI)
		} else {
			var err error
			rewriter, err = ssi.New(cfg.SSI, root)
			if err != nil {
				logrus.Errorf("ssi disabled: %v", err)
				rewriter = nil
			}
		}
	}

	tr := &transform.Transform{Charset: cfg.Charset, Rewriter: rewriter}
	var handler http.Handler = responder.New(root, cfg, tr)
	if !noCompression {
		handler = gzhttp.GzipHandler(handler)
	}
	return metrics.Instrument(handler), nil
}

func parseEndpoints(cfg *config.Config) ([]endpoint.Endpoint, error) {
	specs := listens.Value()
	if len(specs) == 0 {
		specs = cfg.Listen
	}
	if len(specs) == 0 {
		specs = []string{""}
	}

	endpoints := make([]endpoint.Endpoint, 0, len(specs))
	for _, spec := range specs {
		ep, err := endpoint.Parse(spec)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}
