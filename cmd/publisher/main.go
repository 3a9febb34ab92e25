package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/dustin/go-humanize"

	"tradelens/internal/casestudy"
	"tradelens/internal/dataset"
	"tradelens/internal/model"
	"tradelens/internal/projection"
	"tradelens/internal/providers/localfs"
	"tradelens/internal/session"
	"tradelens/internal/store/sqlite"
)

type metaFile struct {
	GeneratedAt string      `json:"generated_at"`
	CaseStudies []studyMeta `json:"case_studies"`
}

type studyMeta struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Years       []int    `json:"years"`
	DefaultYear int      `json:"default_year"`
	Products    []string `json:"products"`
	Files       []string `json:"files"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "build":
		build(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func build(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	outDir := fs.String("out", "site/data", "output directory")
	dbPath := fs.String("db", "", "existing sqlite database written by the collector (empty reads CSVs from -data)")
	dataDir := fs.String("data", "data", "data root used when -db is empty")
	studiesCSV := fs.String("studies", "", "comma-separated case-study ids (empty = all)")
	studiesFile := fs.String("studies-file", "", "YAML file with extra case studies")
	fs.Parse(args)

	log.SetHandler(cli.New(os.Stderr))

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create output dir:", err)
		os.Exit(1)
	}

	reader, closeReader, err := openReader(*dbPath, *dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open source:", err)
		os.Exit(1)
	}
	defer closeReader()

	studies, err := selectStudies(*studiesFile, *studiesCSV)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid studies:", err)
		os.Exit(1)
	}

	meta := metaFile{GeneratedAt: time.Now().UTC().Format(time.RFC3339)}
	written := uint64(0)
	for _, study := range studies {
		entry, size, err := publishStudy(context.Background(), *outDir, study, reader)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to publish %s: %v\n", study.ID, err)
			os.Exit(1)
		}
		written += size
		meta.CaseStudies = append(meta.CaseStudies, entry)
	}

	size, err := writeJSON(filepath.Join(*outDir, "meta.json"), meta)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to write meta.json:", err)
		os.Exit(1)
	}
	written += size

	fmt.Printf("publisher build complete (out=%s studies=%d size=%s)\n", *outDir, len(studies), humanize.Bytes(written))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: publisher build [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -out           output directory (default: site/data)")
	fmt.Fprintln(os.Stderr, "  -db            existing sqlite database (default: read CSVs)")
	fmt.Fprintln(os.Stderr, "  -data          data root used when -db is empty (default: data)")
	fmt.Fprintln(os.Stderr, "  -studies       comma-separated case-study ids (default: all)")
	fmt.Fprintln(os.Stderr, "  -studies-file  YAML file with extra case studies")
}

func openReader(dbPath, dataDir string) (dataset.Reader, func(), error) {
	if strings.TrimSpace(dbPath) == "" {
		provider, err := localfs.New(dataDir)
		if err != nil {
			return nil, nil, err
		}
		return dataset.NewCSVReader(provider), func() {}, nil
	}
	// sqlite.New would create a missing file and publish an empty site.
	if _, err := os.Stat(dbPath); err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	st, err := sqlite.New(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return st, func() { st.Close() }, nil
}

func selectStudies(studiesFile, idsCSV string) ([]model.CaseStudy, error) {
	registry := casestudy.NewRegistry()
	if strings.TrimSpace(studiesFile) != "" {
		if err := registry.LoadFile(studiesFile); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(idsCSV) == "" {
		return registry.List(), nil
	}
	studies := make([]model.CaseStudy, 0)
	for _, id := range strings.Split(idsCSV, ",") {
		if strings.TrimSpace(id) == "" {
			continue
		}
		study, err := registry.Lookup(id)
		if err != nil {
			return nil, err
		}
		studies = append(studies, study)
	}
	return studies, nil
}

// publishStudy renders every year of a study with the default country and
// product selection: one views file and one GeoJSON file per year.
func publishStudy(ctx context.Context, outDir string, study model.CaseStudy, reader dataset.Reader) (studyMeta, uint64, error) {
	sess := session.Load(ctx, study, reader)
	entry := studyMeta{
		ID:          study.ID,
		Name:        study.Name,
		Years:       sess.Dataset.Years(),
		DefaultYear: sess.Filter.Year,
		Products:    sess.Dataset.Products(),
		Files:       []string{},
	}

	dir := filepath.Join(outDir, study.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return entry, 0, err
	}

	written := uint64(0)
	for _, year := range entry.Years {
		state := sess.Filter
		state.Year = year
		views := sess.WithFilter(state).Render()

		name := fmt.Sprintf("views-%d.json", year)
		size, err := writeJSON(filepath.Join(dir, name), views)
		if err != nil {
			return entry, written, err
		}
		written += size
		entry.Files = append(entry.Files, filepath.ToSlash(filepath.Join(study.ID, name)))

		data, err := projection.GeoJSON(views.Map)
		if err != nil {
			return entry, written, err
		}
		name = fmt.Sprintf("map-%d.geojson", year)
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return entry, written, err
		}
		written += uint64(len(data))
		entry.Files = append(entry.Files, filepath.ToSlash(filepath.Join(study.ID, name)))
	}
	return entry, written, nil
}

func writeJSON(path string, value any) (uint64, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	return uint64(len(data)), nil
}
