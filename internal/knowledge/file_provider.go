package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/offline-triage-engine/internal/domain"
)

// FileProvider reads a knowledge base from a YAML or JSON document on disk.
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider for the document at path. The format
// is chosen by extension: .json is JSON, anything else is YAML.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Name implements domain.KnowledgeBaseProvider.
func (p *FileProvider) Name() string {
	return "file:" + filepath.Base(p.path)
}

// Load implements domain.KnowledgeBaseProvider.
func (p *FileProvider) Load(ctx context.Context) (*domain.KnowledgeBase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base file: %w", err)
	}

	kb, err := Decode(data, strings.ToLower(filepath.Ext(p.path)) == ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p.path, err)
	}
	return kb, nil
}

// Decode parses a knowledge base document.
func Decode(data []byte, isJSON bool) (*domain.KnowledgeBase, error) {
	kb := &domain.KnowledgeBase{}
	if isJSON {
		if err := json.Unmarshal(data, kb); err != nil {
			return nil, err
		}
		return kb, nil
	}
	if err := yaml.Unmarshal(data, kb); err != nil {
		return nil, err
	}
	return kb, nil
}

// WriteFile stores kb as YAML or JSON, matching the extension of path.
func WriteFile(path string, kb *domain.KnowledgeBase) error {
	var (
		data []byte
		err  error
	)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		data, err = json.MarshalIndent(kb, "", "  ")
	} else {
		data, err = yaml.Marshal(kb)
	}
	if err != nil {
		return fmt.Errorf("failed to encode knowledge base: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
