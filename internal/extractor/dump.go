package extractor

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema/dump.schema.json
var dumpSchemaSource string

const dumpSchemaURL = "https://apisurface.dev/schemas/dump.schema.json"

// ignoredAssemblies are framework-internal assemblies whose forwarded types
// are never part of a public surface.
var ignoredAssemblies = map[string]bool{
	"System.ServiceModel.Internals":             true,
	"Microsoft.Internal.Tasks.Dataflow":         true,
	"MSDATASRC":                                 true,
	"ADODB":                                     true,
	"Microsoft.StdFormat":                       true,
	"stdole":                                    true,
	"PresentationUI":                            true,
	"Microsoft.VisualBasic.Activities.Compiler": true,
	"SMDiagnostics":                             true,
	"System.Xaml.Hosting":                       true,
	"Microsoft.Transactions.Bridge":             true,
	"Microsoft.Workflow.Compiler":               true,
}

var forwardedSuffix = regexp.MustCompile(`\s*\(forwarded, contained in ([^)]+)\)$`)

// ErrInvalidDump is returned when a dump does not match the dump schema.
var ErrInvalidDump = errors.New("invalid metadata dump")

var (
	dumpSchemaOnce sync.Once
	dumpSchema     *jsonschema.Schema
	dumpSchemaErr  error
)

func compiledDumpSchema() (*jsonschema.Schema, error) {
	dumpSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(dumpSchemaURL, strings.NewReader(dumpSchemaSource)); err != nil {
			dumpSchemaErr = err
			return
		}
		dumpSchema, dumpSchemaErr = compiler.Compile(dumpSchemaURL)
	})
	return dumpSchema, dumpSchemaErr
}

// DumpDocument is the YAML or JSON document written by an external metadata
// tool for one assembly.
type DumpDocument struct {
	Assembly  string   `yaml:"assembly" json:"assembly"`
	Version   string   `yaml:"version,omitempty" json:"version,omitempty"`
	Nullable  []string `yaml:"nullable" json:"nullable"`
	Oblivious []string `yaml:"oblivious" json:"oblivious"`
}

// Dump reads pre-rendered entries from a metadata dump.
type Dump struct {
	logger *slog.Logger
}

// NewDump creates a dump source.
func NewDump(opts Options) *Dump {
	return &Dump{logger: opts.logger()}
}

// Extract loads the dump at target. A relative target that does not exist
// is looked up in searchPaths.
func (d *Dump) Extract(ctx context.Context, target string, searchPaths []string) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := locate(target, searchPaths)
	if err != nil {
		return nil, err
	}
	doc, err := ReadDump(path)
	if err != nil {
		return nil, err
	}

	out := &Extraction{
		Nullable:  filterForwarded(doc.Nullable),
		Oblivious: filterForwarded(doc.Oblivious),
	}
	d.logger.Debug("loaded metadata dump",
		"path", path,
		"assembly", doc.Assembly,
		"entries", len(out.Nullable),
		"dropped", len(doc.Nullable)-len(out.Nullable))
	return out, nil
}

func locate(target string, searchPaths []string) (string, error) {
	_, err := os.Stat(target)
	if err == nil {
		return target, nil
	}
	if !errors.Is(err, os.ErrNotExist) || filepath.IsAbs(target) {
		return "", fmt.Errorf("failed to stat dump %s: %w", target, err)
	}
	for _, dir := range searchPaths {
		candidate := filepath.Join(dir, target)
		if _, serr := os.Stat(candidate); serr == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("failed to stat dump %s: %w", target, err)
}

// ReadDump decodes and validates a dump file. JSON documents are accepted
// as YAML.
func ReadDump(path string) (*DumpDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump %s: %w", path, err)
	}
	return ParseDump(data)
}

// ParseDump decodes and validates dump content.
func ParseDump(data []byte) (*DumpDocument, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDump, err)
	}

	// Round-trip through JSON so the validator sees JSON value types.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDump, err)
	}
	var v any
	if err := json.Unmarshal(normalized, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDump, err)
	}

	schema, err := compiledDumpSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile dump schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDump, err)
	}

	var doc DumpDocument
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDump, err)
	}
	return &doc, nil
}

// filterForwarded drops entries forwarded from ignored assemblies.
func filterForwarded(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if m := forwardedSuffix.FindStringSubmatch(e); m != nil && ignoredAssemblies[strings.TrimSpace(m[1])] {
			continue
		}
		out = append(out, e)
	}
	return out
}
