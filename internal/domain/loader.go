// Package domain reads learning-domain descriptions from disk and compiles
// them into the structures the engine works on: the competence graph, the
// update-level table and the content graph.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/competence/internal/competence"
	"github.com/nvandessel/competence/internal/models"
	"github.com/nvandessel/competence/internal/selection"
	"github.com/nvandessel/competence/internal/update"
)

// Format is a supported description encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", &models.ConfigError{Field: "domain", Reason: fmt.Sprintf("unsupported domain file extension %q", filepath.Ext(path))}
	}
}

// LoadFile reads and validates the description at path.
func LoadFile(path string) (*models.DomainDescription, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading domain file: %w", err)
	}
	d, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse decodes and validates a description.
func Parse(data []byte, format Format) (*models.DomainDescription, error) {
	var d models.DomainDescription
	var err error
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&d)
	case FormatTOML:
		var md toml.MetaData
		md, err = toml.Decode(string(data), &d)
		if err == nil {
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				err = fmt.Errorf("unknown keys: %v", undecoded)
			}
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&d)
	default:
		return nil, &models.ConfigError{Field: "domain", Reason: fmt.Sprintf("unsupported format %q", format)}
	}
	if err != nil {
		return nil, &models.ConfigError{Field: "domain", Reason: fmt.Sprintf("malformed %s: %v", format, err)}
	}
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Compiled is a description turned into engine structures.
type Compiled struct {
	Description *models.DomainDescription
	Graph       *competence.Graph
	Levels      *update.LevelTable
	Content     *selection.ContentGraph
}

// Compile builds the competence graph, level table and content graph of d.
func Compile(d *models.DomainDescription) (*Compiled, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}
	g, err := competence.NewGraph(d.Competences, d.Prerequisites)
	if err != nil {
		return nil, err
	}
	levels, err := update.NewLevelTable(d.UpdateLevels)
	if err != nil {
		return nil, err
	}
	content, err := selection.NewContentGraph(d.Units, g)
	if err != nil {
		return nil, err
	}
	return &Compiled{Description: d, Graph: g, Levels: levels, Content: content}, nil
}

// Marshal encodes d in the given format.
func Marshal(d *models.DomainDescription, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(d)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(d); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON:
		return json.MarshalIndent(d, "", "  ")
	default:
		return nil, &models.ConfigError{Field: "domain", Reason: fmt.Sprintf("unsupported format %q", format)}
	}
}
