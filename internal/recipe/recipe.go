// Package recipe reads and writes recipe documents.
//
// A recipe is stored as YAML by default:
//
//	name: ctd-cleanup
//	headers: [Station Name, Date, Time, Temp (C)]
//	steps:
//	  - task: clean_headers
//	    params: {case: snake}
//	  - task: merge_datetime
//	    params: {date_column: date, time_column: time}
//
// JSON documents with the same fields are accepted too. Unknown fields are
// rejected so a misspelled key fails loudly instead of being ignored.
package recipe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

// Format is a recipe document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "application/yaml"
}

// FormatForPath picks a format from a file extension. Anything other than
// .json is treated as YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// FormatForContentType picks a format from a request Content-Type.
func FormatForContentType(ct string) Format {
	if strings.Contains(strings.ToLower(ct), "json") {
		return FormatJSON
	}
	return FormatYAML
}

// Encode writes rec to w in the given format.
func Encode(w io.Writer, rec core.Recipe, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode recipe: %w", err)
		}
		return nil
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode recipe: %w", err)
		}
		return enc.Close()
	}
}

// Marshal returns rec encoded as YAML.
func Marshal(rec core.Recipe) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rec, FormatYAML); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a recipe document and validates its steps.
// A document that starts with '{' is read as JSON whatever f says.
func Decode(data []byte, f Format) (core.Recipe, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return core.Recipe{}, fmt.Errorf("invalid recipe: empty document")
	}
	if trimmed[0] == '{' {
		f = FormatJSON
	}

	var (
		rec core.Recipe
		err error
	)
	switch f {
	case FormatJSON:
		rec, err = decodeJSON(trimmed)
	default:
		rec, err = decodeYAML(trimmed)
	}
	if err != nil {
		return core.Recipe{}, err
	}

	normalizeParams(&rec)
	if err := rec.Validate(); err != nil {
		return core.Recipe{}, err
	}
	return rec, nil
}

func decodeJSON(data []byte) (core.Recipe, error) {
	var rec core.Recipe
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return core.Recipe{}, fmt.Errorf("invalid recipe: parsing JSON: %w", err)
	}
	return rec, nil
}

func decodeYAML(data []byte) (core.Recipe, error) {
	var rec core.Recipe
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rec); err != nil {
		return core.Recipe{}, fmt.Errorf("invalid recipe: parsing YAML: %w", err)
	}
	return rec, nil
}

// normalizeParams rewrites YAML's map[any]any values, which can appear in
// flow mappings nested inside lists, into the map[string]any form that
// encoding/json can marshal.
func normalizeParams(rec *core.Recipe) {
	for i := range rec.Steps {
		for k, v := range rec.Steps[i].Params {
			rec.Steps[i].Params[k] = normalizeValue(v)
		}
	}
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalizeValue(inner)
		}
		return out
	case map[string]any:
		for k, inner := range val {
			val[k] = normalizeValue(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = normalizeValue(inner)
		}
		return val
	default:
		return v
	}
}

// LoadFile reads a recipe file; the format follows the extension.
func LoadFile(path string) (core.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Recipe{}, fmt.Errorf("read recipe: %w", err)
	}
	rec, err := Decode(data, FormatForPath(path))
	if err != nil {
		return core.Recipe{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if rec.Name == "" {
		rec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return rec, nil
}

// SaveFile writes rec to path; the format follows the extension.
func SaveFile(path string, rec core.Recipe) error {
	var buf bytes.Buffer
	if err := Encode(&buf, rec, FormatForPath(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write recipe: %w", err)
	}
	return nil
}
