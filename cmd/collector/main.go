package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"tradelens/internal/casestudy"
	"tradelens/internal/dataset"
	"tradelens/internal/model"
	"tradelens/internal/providers"
	"tradelens/internal/providers/httpcsv"
	"tradelens/internal/providers/localfs"
	"tradelens/internal/store"
	"tradelens/internal/store/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		run(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func run(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	source := fs.String("source", "local", "table source (local, http)")
	dataDir := fs.String("data", "data", "data root for the local source")
	studiesCSV := fs.String("studies", "", "comma-separated case-study ids (empty = all)")
	studiesFile := fs.String("studies-file", "", "YAML file with extra case studies")
	dbPath := fs.String("db", "tradelens.db", "sqlite database path (empty disables persistence)")
	verbose := fs.Bool("verbose", false, "log each table read")
	fs.Parse(args)

	_ = godotenv.Load()
	log.SetHandler(cli.New(os.Stderr))
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := runCollector(*source, *dataDir, *studiesCSV, *studiesFile, *dbPath); err != nil {
		fmt.Fprintln(os.Stderr, "collector run failed:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: collector run [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -source        table source: local or http (default: local)")
	fmt.Fprintln(os.Stderr, "  -data          data root for the local source (default: data)")
	fmt.Fprintln(os.Stderr, "  -studies       comma-separated case-study ids (default: all)")
	fmt.Fprintln(os.Stderr, "  -studies-file  YAML file with extra case studies")
	fmt.Fprintln(os.Stderr, "  -db            sqlite database path (default: tradelens.db)")
	fmt.Fprintln(os.Stderr, "  -verbose       log each table read")
}

func runCollector(source, dataDir, studiesCSV, studiesFile, dbPath string) error {
	provider, err := buildProvider(source, dataDir)
	if err != nil {
		return err
	}
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}

	registry := casestudy.NewRegistry()
	if strings.TrimSpace(studiesFile) != "" {
		if err := registry.LoadFile(studiesFile); err != nil {
			return err
		}
	}

	studies, err := resolveStudies(registry, parseList(studiesCSV))
	if err != nil {
		return err
	}
	if len(studies) == 0 {
		return errors.New("no case studies selected")
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	reader := dataset.NewCSVReader(provider)

	complete := 0
	partial := 0
	empty := 0
	stored := 0
	for _, study := range studies {
		ds := dataset.Load(ctx, study, reader)
		switch {
		case ds.IsEmpty():
			empty++
			fmt.Fprintf(os.Stderr, "skip empty case_study=%s\n", study.ID)
			continue
		case len(ds.Tariffs) == 0 || len(ds.Trade) == 0 || len(ds.Macro) == 0:
			partial++
		default:
			complete++
		}

		if err := st.UpsertDataset(ctx, study.ID, ds); err != nil {
			return fmt.Errorf("store %s: %w", study.ID, err)
		}
		counts, err := st.CountRows(ctx, study.ID)
		if err != nil {
			return fmt.Errorf("count %s: %w", study.ID, err)
		}
		stored += counts.Total()
		fmt.Printf("collector stored case_study=%s tariffs=%s trade=%s macro=%s\n",
			study.ID,
			humanize.Comma(int64(counts.Tariffs)),
			humanize.Comma(int64(counts.Trade)),
			humanize.Comma(int64(counts.Macro)),
		)
	}

	fmt.Printf("collector run complete (source=%s studies=%d complete=%d partial=%d empty=%d rows=%s)\n",
		provider.Name(), len(studies), complete, partial, empty, humanize.Comma(int64(stored)),
	)
	return nil
}

func buildProvider(source, dataDir string) (providers.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "local", "localfs":
		return localfs.New(dataDir)
	case "http", "httpcsv":
		return httpcsv.New()
	default:
		return nil, fmt.Errorf("unknown source: %s", source)
	}
}

func openStore(path string) (store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return &store.NopStore{}, nil
	}
	return sqlite.New(path)
}

func resolveStudies(registry *casestudy.Registry, ids []string) ([]model.CaseStudy, error) {
	if len(ids) == 0 {
		return registry.List(), nil
	}
	studies := make([]model.CaseStudy, 0, len(ids))
	for _, id := range ids {
		study, err := registry.Lookup(id)
		if err != nil {
			return nil, err
		}
		studies = append(studies, study)
	}
	return studies, nil
}

func parseList(value string) []string {
	raw := strings.Split(value, ",")
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		items = append(items, strings.ToLower(trimmed))
	}
	return items
}
