package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for an unrecognized persistence format.
var ErrUnknownFormat = errors.New("unknown snapshot format")

// Format names a persistence encoding.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatSQLite Format = "sqlite"
)

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatYAML, FormatSQLite:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Codec encodes a record set to a byte stream and back.
type Codec interface {
	Encode(w io.Writer, recs []Record) error
	Decode(r io.Reader) ([]Record, error)
}

// CodecFor returns the stream codec of a file format.
func CodecFor(f Format) (Codec, error) {
	switch f {
	case FormatCSV:
		return CSVCodec{}, nil
	case FormatJSON:
		return JSONCodec{}, nil
	case FormatYAML:
		return YAMLCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: no stream codec for %q", ErrUnknownFormat, f)
	}
}

// JSONCodec stores records as an indented JSON array.
type JSONCodec struct{}

func (JSONCodec) Encode(w io.Writer, recs []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

func (JSONCodec) Decode(r io.Reader) ([]Record, error) {
	var recs []Record
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return recs, nil
}

// YAMLCodec stores records as a YAML sequence.
type YAMLCodec struct{}

func (YAMLCodec) Encode(w io.Writer, recs []Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(recs); err != nil {
		return err
	}
	return enc.Close()
}

func (YAMLCodec) Decode(r io.Reader) ([]Record, error) {
	var recs []Record
	if err := yaml.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return recs, nil
}
