// Dashboard serves trade-policy case studies over HTTP.
//
// Usage:
//
//	dashboard serve [--data data] [--db tradelens.db] [--port 8080]
//	dashboard studies
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	logcli "github.com/apex/log/handlers/cli"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"tradelens/internal/casestudy"
	"tradelens/internal/config"
	"tradelens/internal/dataset"
	"tradelens/internal/metrics"
	"tradelens/internal/projection"
	"tradelens/internal/providers"
	"tradelens/internal/providers/httpcsv"
	"tradelens/internal/providers/localfs"
	"tradelens/internal/server"
	"tradelens/internal/session"
	"tradelens/internal/store/sqlite"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	app := &cli.App{
		Name:    "dashboard",
		Usage:   "Trade-policy case-study dashboard",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   cfg.LogLevel,
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "studies-file",
				Value:   cfg.StudiesFile,
				Usage:   "YAML file with extra case studies",
				EnvVars: []string{"TRADELENS_STUDIES_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			log.SetHandler(logcli.New(os.Stderr))
			level, err := log.ParseLevel(c.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(cfg),
			studiesCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "data",
				Value: cfg.DataDir,
				Usage: "Data root holding <study>/tariffs.csv, trade_volumes.csv, macro.csv",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Value: cfg.DataBaseURL,
				Usage: "Read tables over HTTP from this base URL instead of --data",
			},
			&cli.StringFlag{
				Name:  "db",
				Value: cfg.DBPath,
				Usage: "Read tables from this sqlite database (filled by the collector)",
			},
			&cli.StringFlag{
				Name:  "host",
				Value: cfg.Host,
				Usage: "Listen host",
			},
			&cli.StringFlag{
				Name:  "port",
				Value: cfg.Port,
				Usage: "Listen port",
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Value: cfg.DebounceDelay,
				Usage: "Delay before a filter change is re-rendered",
			},
			&cli.IntFlag{
				Name:  "cache-size",
				Value: cfg.CacheSize,
				Usage: "Number of loaded case studies kept in memory",
			},
		},
		Action: func(c *cli.Context) error {
			registry, err := loadRegistry(c.String("studies-file"))
			if err != nil {
				return err
			}

			reader, closeReader, err := openReader(c.String("db"), c.String("base-url"), c.String("data"))
			if err != nil {
				return err
			}
			defer closeReader()

			metrics.Register()
			if !strings.EqualFold(c.String("log-level"), "debug") {
				gin.SetMode(gin.ReleaseMode)
			}

			controller := session.NewController(c.Duration("debounce"), session.WithRenderHook(func(v projection.Views) {
				log.WithFields(log.Fields{
					"case_study": v.Study.ID,
					"year":       v.Filter.Year,
					"country":    v.Filter.Country,
					"product":    v.Filter.Product,
				}).Debug("views rendered")
			}))
			defer controller.Close()

			srv, err := server.New(registry, reader, controller, c.Int("cache-size"))
			if err != nil {
				return err
			}
			return srv.Run(c.String("host") + ":" + c.String("port"))
		},
	}
}

func studiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "studies",
		Usage: "List the configured case studies",
		Action: func(c *cli.Context) error {
			registry, err := loadRegistry(c.String("studies-file"))
			if err != nil {
				return err
			}
			for _, study := range registry.List() {
				fmt.Printf("%-10s %s (%s)\n", study.ID, study.Name, strings.Join(study.Countries, ", "))
			}
			return nil
		},
	}
}

func loadRegistry(path string) (*casestudy.Registry, error) {
	registry := casestudy.NewRegistry()
	if strings.TrimSpace(path) == "" {
		return registry, nil
	}
	if err := registry.LoadFile(path); err != nil {
		return nil, err
	}
	return registry, nil
}

func openReader(dbPath, baseURL, dataDir string) (dataset.Reader, func(), error) {
	if strings.TrimSpace(dbPath) != "" {
		st, err := sqlite.New(dbPath)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("db", dbPath).Info("reading tables from sqlite")
		return st, func() { st.Close() }, nil
	}

	var provider providers.Provider
	closeProvider := func() {}
	if strings.TrimSpace(baseURL) != "" {
		// The flag supplies the base URL; the rest of the settings still
		// come from TRADELENS_HTTP_*.
		cfg, _ := httpcsv.ConfigFromEnv()
		cfg.BaseURL = baseURL
		p, err := httpcsv.NewWithConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		provider = p
		closeProvider = func() { p.Close() }
	} else {
		p, err := localfs.New(dataDir)
		if err != nil {
			return nil, nil, err
		}
		provider = p
	}
	log.WithField("provider", provider.Name()).Info("reading tables from provider")
	return dataset.NewCSVReader(provider), closeProvider, nil
}
