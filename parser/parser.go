package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v4"

	"github.com/alexstrat/executable-openapi/internal/options"
	"github.com/alexstrat/executable-openapi/oaserrors"
)

// DefaultMaxFileSize bounds the size of documents read from files and readers.
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

// Option is a function that configures a parse operation
type Option func(*parseConfig) error

// parseConfig holds configuration for a parse operation
type parseConfig struct {
	// Input source (exactly one must be set)
	filePath *string
	reader   io.Reader
	bytes    []byte

	logger      Logger
	maxFileSize int64
	sourceName  *string
}

// ParseWithOptions parses an OpenAPI 3.x document (YAML or JSON) using
// functional options.
//
// Example:
//
//	doc, err := parser.ParseWithOptions(
//	    parser.WithFilePath("openapi.yaml"),
//	    parser.WithLogger(parser.NewSlogAdapter(slog.Default())),
//	)
func ParseWithOptions(opts ...Option) (*Document, error) {
	cfg, err := applyOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("parser: invalid options: %w", err)
	}

	var (
		data   []byte
		source string
	)
	switch {
	case cfg.filePath != nil:
		source = *cfg.filePath
		data, err = readFile(source, cfg.maxFileSize)
	case cfg.reader != nil:
		data, err = readLimited(cfg.reader, cfg.maxFileSize)
	default:
		data = cfg.bytes
	}
	if err != nil {
		return nil, &oaserrors.ParseError{Path: source, Message: "reading document", Cause: err}
	}
	if cfg.sourceName != nil {
		source = *cfg.sourceName
	}

	doc, err := parseBytes(data, source)
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug("parsed document",
		"source", source,
		"openapi", doc.OpenAPI,
		"paths", len(doc.Paths),
	)
	return doc, nil
}

// Parse parses a document held in memory.
func Parse(data []byte) (*Document, error) {
	return ParseWithOptions(WithBytes(data))
}

// ParseFile parses the document stored at path.
func ParseFile(path string) (*Document, error) {
	return ParseWithOptions(WithFilePath(path))
}

func applyOptions(opts ...Option) (*parseConfig, error) {
	cfg := &parseConfig{
		logger:      NopLogger{},
		maxFileSize: DefaultMaxFileSize,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := options.ValidateSingleInputSource(
		"parser input (use WithFilePath, WithReader, or WithBytes)",
		cfg.filePath != nil, cfg.reader != nil, cfg.bytes != nil,
	); err != nil {
		return nil, err
	}

	return cfg, nil
}

// WithFilePath specifies a file path as the input source
func WithFilePath(path string) Option {
	return func(cfg *parseConfig) error {
		cfg.filePath = &path
		return nil
	}
}

// WithReader specifies an io.Reader as the input source
func WithReader(r io.Reader) Option {
	return func(cfg *parseConfig) error {
		if r == nil {
			return fmt.Errorf("parser: reader cannot be nil")
		}
		cfg.reader = r
		return nil
	}
}

// WithBytes specifies a byte slice as the input source
func WithBytes(data []byte) Option {
	return func(cfg *parseConfig) error {
		if data == nil {
			return fmt.Errorf("parser: bytes cannot be nil")
		}
		cfg.bytes = data
		return nil
	}
}

// WithLogger sets a structured logger for debug output during parsing.
// By default, no logging is performed.
func WithLogger(l Logger) Option {
	return func(cfg *parseConfig) error {
		cfg.logger = OrNop(l)
		return nil
	}
}

// WithMaxFileSize bounds the number of bytes read from files and readers.
// Default: DefaultMaxFileSize
func WithMaxFileSize(n int64) Option {
	return func(cfg *parseConfig) error {
		if n <= 0 {
			return &oaserrors.ConfigError{Option: "max file size", Value: n, Message: "must be positive"}
		}
		cfg.maxFileSize = n
		return nil
	}
}

// WithSourceName overrides the source recorded in Document.SourcePath and in
// parse errors.
func WithSourceName(name string) Option {
	return func(cfg *parseConfig) error {
		cfg.sourceName = &name
		return nil
	}
}

func readFile(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return readLimited(f, limit)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &oaserrors.ConfigError{Option: "max file size", Value: limit, Message: "document exceeds the size limit"}
	}
	return data, nil
}

func parseBytes(data []byte, source string) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &oaserrors.ParseError{Path: source, Message: "invalid YAML or JSON", Cause: err}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, &oaserrors.ParseError{Path: source, Message: "document root must be a mapping"}
	}
	mapping := root.Content[0]

	doc := &Document{SourcePath: source}
	if err := mapping.Decode(doc); err != nil {
		return nil, &oaserrors.ParseError{Path: source, Message: "decoding document", Cause: err}
	}
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		return nil, &oaserrors.ParseError{
			Path:    source,
			Line:    mapping.Line,
			Message: fmt.Sprintf("unsupported OpenAPI version %q: only 3.x documents can be executed", doc.OpenAPI),
		}
	}

	var raw any
	if err := mapping.Decode(&raw); err != nil {
		return nil, &oaserrors.ParseError{Path: source, Message: "decoding document", Cause: err}
	}
	doc.raw = raw
	doc.pathOrder = mappingKeys(mapping, "paths")
	return doc, nil
}

// mappingKeys returns the keys of the mapping stored under key, in document order.
func mappingKeys(mapping *yaml.Node, key string) []string {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value != key {
			continue
		}
		value := mapping.Content[i+1]
		if value.Kind != yaml.MappingNode {
			return nil
		}
		keys := make([]string, 0, len(value.Content)/2)
		for j := 0; j+1 < len(value.Content); j += 2 {
			keys = append(keys, value.Content[j].Value)
		}
		return keys
	}
	return nil
}
