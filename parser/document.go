package parser

import (
	"fmt"
	"sort"
	"sync"

	"go.yaml.in/yaml/v4"
)

// Document is an OpenAPI 3.x document.
//
// A Document must not be modified once it has been handed to an executor:
// the executor caches what it derives from it.
type Document struct {
	OpenAPI    string                `yaml:"openapi" json:"openapi"`
	Info       *Info                 `yaml:"info,omitempty" json:"info,omitempty"`
	Servers    []*Server             `yaml:"servers,omitempty" json:"servers,omitempty"`
	Paths      Paths                 `yaml:"paths,omitempty" json:"paths,omitempty"`
	Components *Components           `yaml:"components,omitempty" json:"components,omitempty"`
	Security   []SecurityRequirement `yaml:"security,omitempty" json:"security,omitempty"`
	Tags       []*Tag                `yaml:"tags,omitempty" json:"tags,omitempty"`
	Extra      map[string]any        `yaml:",inline" json:"-"`

	// SourcePath is the file the document was loaded from, if any.
	SourcePath string `yaml:"-" json:"-"`

	pathOrder []string

	rawOnce sync.Once
	raw     any
	rawErr  error
}

// Info provides metadata about the API.
type Info struct {
	Title       string         `yaml:"title" json:"title"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string         `yaml:"version" json:"version"`
	Extra       map[string]any `yaml:",inline" json:"-"`
}

// Server represents a server the API is served from.
type Server struct {
	URL         string `yaml:"url" json:"url"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Tag adds metadata to a tag used by operations.
type Tag struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Components holds reusable objects referenced from the rest of the document.
type Components struct {
	Schemas         map[string]*Schema         `yaml:"schemas,omitempty" json:"schemas,omitempty"`
	Responses       map[string]*Response       `yaml:"responses,omitempty" json:"responses,omitempty"`
	Parameters      map[string]*Parameter      `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	RequestBodies   map[string]*RequestBody    `yaml:"requestBodies,omitempty" json:"requestBodies,omitempty"`
	SecuritySchemes map[string]*SecurityScheme `yaml:"securitySchemes,omitempty" json:"securitySchemes,omitempty"`
	PathItems       map[string]*PathItem       `yaml:"pathItems,omitempty" json:"pathItems,omitempty"` // OAS 3.1
	Extra           map[string]any             `yaml:",inline" json:"-"`
}

// SecurityRequirement maps security scheme names to the scopes they require.
// All schemes of one requirement must be satisfied.
type SecurityRequirement map[string][]string

// SecurityScheme defines a security scheme usable by operations.
type SecurityScheme struct {
	Ref          string         `yaml:"$ref,omitempty" json:"$ref,omitempty"`
	Type         string         `yaml:"type,omitempty" json:"type,omitempty"`
	Description  string         `yaml:"description,omitempty" json:"description,omitempty"`
	Name         string         `yaml:"name,omitempty" json:"name,omitempty"`
	In           string         `yaml:"in,omitempty" json:"in,omitempty"`
	Scheme       string         `yaml:"scheme,omitempty" json:"scheme,omitempty"`
	BearerFormat string         `yaml:"bearerFormat,omitempty" json:"bearerFormat,omitempty"`
	Extra        map[string]any `yaml:",inline" json:"-"`
}

// PathTemplates returns the path templates in the order they were declared.
// Templates added to Paths after loading, or for documents built in code,
// follow in lexical order.
func (d *Document) PathTemplates() []string {
	templates := make([]string, 0, len(d.Paths))
	seen := make(map[string]bool, len(d.Paths))
	for _, tpl := range d.pathOrder {
		if _, ok := d.Paths[tpl]; ok && !seen[tpl] {
			templates = append(templates, tpl)
			seen[tpl] = true
		}
	}
	var rest []string
	for tpl := range d.Paths {
		if !seen[tpl] {
			rest = append(rest, tpl)
		}
	}
	sort.Strings(rest)
	return append(templates, rest...)
}

// SetPathOrder records the declaration order of path templates for documents
// built in code.
func (d *Document) SetPathOrder(templates ...string) {
	d.pathOrder = append([]string(nil), templates...)
}

// Raw returns the document as a generic tree of map[string]any, []any and
// scalars. JSON pointers are evaluated against this tree. For parsed
// documents it is the tree of the source; for documents built in code it is
// derived once by encoding the typed document.
func (d *Document) Raw() (any, error) {
	d.rawOnce.Do(func() {
		if d.raw != nil {
			return
		}
		var tree any
		if err := Decode(d, &tree); err != nil {
			d.rawErr = fmt.Errorf("parser: building raw document: %w", err)
			return
		}
		d.raw = tree
	})
	return d.raw, d.rawErr
}

// Decode converts in, typically a node of the raw tree, into out by
// round-tripping through YAML.
func Decode(in, out any) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
