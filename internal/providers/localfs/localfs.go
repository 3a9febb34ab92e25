package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tradelens/internal/model"
	"tradelens/internal/providers"
)

type Provider struct {
	root string
}

func New(root string) (*Provider, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	return &Provider{root: root}, nil
}

func (p *Provider) Name() string {
	return "localfs"
}

func (p *Provider) Path(study model.CaseStudy, table model.Table) string {
	dataPath := study.DataPath
	if dataPath == "" {
		dataPath = study.ID
	}
	return filepath.Join(p.root, filepath.FromSlash(dataPath), table.FileName())
}

func (p *Provider) FetchTable(ctx context.Context, study model.CaseStudy, table model.Table) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := p.Path(study, table)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", providers.ErrNotFound, path)
		}
		return nil, err
	}
	return data, nil
}
