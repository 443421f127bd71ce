package schema

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/assetiq/assetiq/internal/core/domain"
	"github.com/assetiq/assetiq/internal/core/ports"
)

//go:embed synonyms.yaml
var defaultSynonyms []byte

type fileField struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Aliases []string `yaml:"aliases"`
	Values  []string `yaml:"values"`
}

type fileTable struct {
	Version string      `yaml:"version"`
	Fields  []fileField `yaml:"fields"`
}

// Load reads the synonym table from path, or the embedded default when
// path is empty. The table is the single source of field aliases and
// controlled vocabularies for the whole pipeline.
func Load(path string) (*domain.FieldTable, error) {
	data := defaultSynonyms
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read synonym table: %w", err)
		}
	}
	return Parse(data)
}

func Parse(data []byte) (*domain.FieldTable, error) {
	var file fileTable
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse synonym table: %w", err)
	}
	if file.Version == "" {
		return nil, fmt.Errorf("%w: synonym table has no version", domain.ErrInvalidInput)
	}
	if len(file.Fields) == 0 {
		return nil, fmt.Errorf("%w: synonym table has no fields", domain.ErrInvalidInput)
	}

	fields := make([]domain.Field, 0, len(file.Fields))
	seen := make(map[string]struct{}, len(file.Fields))
	for _, ff := range file.Fields {
		if ff.Name == "" {
			return nil, fmt.Errorf("%w: field without a name", domain.ErrInvalidInput)
		}
		if _, dup := seen[ff.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", domain.ErrInvalidInput, ff.Name)
		}
		seen[ff.Name] = struct{}{}

		fieldType := domain.FieldType(ff.Type)
		switch fieldType {
		case domain.FieldText, domain.FieldCategory, domain.FieldNumeric:
		default:
			return nil, fmt.Errorf("%w: field %q has unknown type %q", domain.ErrInvalidInput, ff.Name, ff.Type)
		}
		if fieldType == domain.FieldNumeric && len(ff.Values) > 0 {
			return nil, fmt.Errorf("%w: numeric field %q must not carry a vocabulary", domain.ErrInvalidInput, ff.Name)
		}

		fields = append(fields, domain.Field{
			Name:    ff.Name,
			Type:    fieldType,
			Aliases: ff.Aliases,
			Values:  ff.Values,
		})
	}
	return domain.NewFieldTable(file.Version, fields), nil
}

// Validate checks every table field against the live record store columns,
// catching a synonym file that drifted from the database schema at startup
// instead of at query time.
func Validate(ctx context.Context, table *domain.FieldTable, records ports.RecordStore) error {
	columns, err := records.Columns(ctx)
	if err != nil {
		return fmt.Errorf("load store columns: %w", err)
	}

	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c] = struct{}{}
	}
	for _, f := range table.Fields {
		if _, ok := known[f.Name]; !ok {
			return fmt.Errorf("%w: %q is not a record store column", domain.ErrUnknownField, f.Name)
		}
	}
	return nil
}
