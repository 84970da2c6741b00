package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-forest/internal/db"
	"github.com/joeblew999/plat-forest/internal/logging"
	"github.com/joeblew999/plat-forest/internal/mapview"
	"github.com/joeblew999/plat-forest/internal/server"
	"github.com/joeblew999/plat-forest/internal/service"
)

// Options defines all CLI flags and env vars for the forest server.
// Flags: --host, --port, --data-dir, --log-level, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_LOG_LEVEL, ...
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir   string `doc:"Directory for the database and fixtures" default:".data"`
	LogLevel  string `doc:"Log level (trace, debug, info, warn, error)" default:"info"`
	LogFormat string `doc:"Log format (json or console)" default:"json"`

	Catalog         string `doc:"YAML layer catalog; empty uses the built-in forest layers" default:""`
	FrameIntervalMs int    `doc:"Coalescing window for view updates in milliseconds; 0 applies each update at once" default:"16"`
	FitPadding      int    `doc:"Pixels of margin when fitting to a boundary (at least 1)" default:"20"`
	FitMaxZoom      int    `doc:"Maximum zoom when fitting to a boundary (at least 1)" default:"8"`
	FallbackZoom    int    `doc:"Zoom used for boundaries without area (at least 1)" default:"3"`
	BasemapURL      string `doc:"Basemap tile URL template" default:"https://{s}.basemaps.cartocdn.com/dark_nolabels/{z}/{x}/{y}.png"`
	LabelsURL       string `doc:"Label tile URL template; empty disables labels" default:"https://{s}.basemaps.cartocdn.com/dark_only_labels/{z}/{x}/{y}.png"`
}

func newLogger(opts *Options) zerolog.Logger {
	return logging.New(opts.LogLevel, opts.LogFormat)
}

func newServer(opts *Options, log zerolog.Logger, noDB bool) (*server.Server, error) {
	// The fitter treats zero as unset.
	for name, v := range map[string]int{
		"fit-padding":   opts.FitPadding,
		"fit-max-zoom":  opts.FitMaxZoom,
		"fallback-zoom": opts.FallbackZoom,
	} {
		if v < 1 {
			return nil, fmt.Errorf("--%s must be at least 1, got %d", name, v)
		}
	}

	fit := mapview.DefaultFitOptions()
	fit.Padding = opts.FitPadding
	fit.MaxZoom = opts.FitMaxZoom
	fit.FallbackZoom = opts.FallbackZoom

	return server.New(server.Config{
		Host:          opts.Host,
		Port:          fmt.Sprintf("%d", opts.Port),
		DataDir:       opts.DataDir,
		CatalogFile:   opts.Catalog,
		BaseLayers:    server.DefaultBaseLayers(opts.BasemapURL, opts.LabelsURL),
		Fit:           fit,
		FrameInterval: time.Duration(opts.FrameIntervalMs) * time.Millisecond,
		NoDB:          noDB,
		Logger:        log,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		log := newLogger(opts)
		var (
			mu      sync.Mutex
			srv     *server.Server
			httpSrv *http.Server
		)

		hooks.OnStart(func() {
			s, err := newServer(opts, log, false)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to build server")
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			log.Info().
				Str("addr", addr).
				Str("viewer", baseURL+"/viewer").
				Str("docs", baseURL+"/docs").
				Str("data_dir", opts.DataDir).
				Msg("plat-forest listening")

			hs := &http.Server{
				Addr:              addr,
				Handler:           s,
				ReadHeaderTimeout: 5 * time.Second,
			}
			mu.Lock()
			srv, httpSrv = s, hs
			mu.Unlock()
			if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("http server error")
			}
		})

		hooks.OnStop(func() {
			mu.Lock()
			defer mu.Unlock()
			if httpSrv == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			// Open view streams only end when the view is torn down.
			if err := srv.Close(); err != nil {
				log.Warn().Err(err).Msg("closing server resources")
			}
			_ = httpSrv.Shutdown(ctx)
			log.Info().Msg("shutdown complete")
		})
	})

	cli.Root().Use = "forest"
	cli.Root().Short = "Forest loss dashboard: map view, country history and loss projections"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts, zerolog.Nop(), true)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error building server: %v\n", err)
				os.Exit(1)
			}
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// catalog subcommand: print the effective layer catalog
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the layer catalog as YAML",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			c, err := service.LoadCatalog(opts.Catalog)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
				os.Exit(1)
			}
			if err := service.WriteCatalog(os.Stdout, c); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing catalog: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	cli.Root().AddCommand(catalogCmd)

	// import subcommand: load fixture files into DuckDB
	importCmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import country fixtures (all files in <data-dir>/fixtures when none are given)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			log := newLogger(opts)
			if err := runImport(cmd.Context(), opts, args, log); err != nil {
				log.Error().Err(err).Msg("import failed")
				os.Exit(1)
			}
		}),
	}
	cli.Root().AddCommand(importCmd)

	cli.Run()
}

func runImport(ctx context.Context, opts *Options, paths []string, log zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := db.Get(db.Config{DataDir: opts.DataDir, DBName: "forest"})
	if err != nil {
		return err
	}
	defer db.Close()
	store := db.NewStore(conn)

	if len(paths) == 0 {
		dir := service.FixturesDir(opts.DataDir)
		files, err := service.ListFixtures(dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			paths = append(paths, filepath.Join(dir, f.Name))
		}
	}
	if len(paths) == 0 {
		log.Warn().Str("dir", service.FixturesDir(opts.DataDir)).Msg("no fixture files found")
		return nil
	}

	for _, p := range paths {
		n, err := service.ImportFixtureFile(ctx, store, p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		log.Info().Str("file", p).Int("countries", n).Msg("fixture imported")
	}
	return nil
}
