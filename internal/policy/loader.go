package policy

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/expr-lang/expr"
	"github.com/goccy/go-yaml"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/capgate-dev/capgate/internal/rights"
)

//go:embed schema.json
var schemaBytes []byte

// supportedVersions gates which policy document versions this build
// understands.
const supportedVersions = "^1.0"

type document struct {
	Version    string         `yaml:"version"`
	Operations []operationDoc `yaml:"operations"`
}

type operationDoc struct {
	Name          string     `yaml:"name"`
	CreatesHandle bool       `yaml:"creates_handle"`
	Args          []checkDoc `yaml:"args"`
}

type checkDoc struct {
	Arg    int      `yaml:"arg"`
	Rights []string `yaml:"rights"`
	When   string   `yaml:"when"`
}

// LoadFile loads and validates a policy table from a YAML file.
func LoadFile(path string) (*Table, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy directory: %w", err)
	}
	defer func() {
		_ = root.Close() // Best-effort cleanup
	}()

	file, err := root.Open(base)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy: %w", err)
	}
	defer func() {
		_ = file.Close() // Best-effort cleanup
	}()

	return Load(file)
}

// Load reads a policy document, checks it against the embedded JSON
// schema, and compiles it into an immutable Table.
func Load(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}

	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode policy YAML: %w", err)
	}

	return compile(&doc)
}

// validateSchema checks the raw document shape before compilation so
// structural errors surface with schema paths.
func validateSchema(data []byte) error {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("failed to convert policy to JSON: %w", err)
	}

	var instance any
	if err := json.Unmarshal(jsonData, &instance); err != nil {
		return fmt.Errorf("failed to parse policy document: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("policy.schema.json", bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("failed to add policy schema resource: %w", err)
	}
	schema, err := compiler.Compile("policy.schema.json")
	if err != nil {
		return fmt.Errorf("failed to compile policy schema: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return formatSchemaError(validationErr)
		}
		return fmt.Errorf("policy schema validation failed: %w", err)
	}
	return nil
}

// formatSchemaError flattens a nested validation error into one
// readable message per leaf cause.
func formatSchemaError(err *jsonschema.ValidationError) error {
	var leaves []string

	var collect func(*jsonschema.ValidationError)
	collect = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			leaves = append(leaves, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, cause := range e.Causes {
			collect(cause)
		}
	}
	collect(err)

	return fmt.Errorf("policy schema validation failed:\n  - %s", strings.Join(leaves, "\n  - "))
}

// compile turns a decoded document into a Table, checking the version
// gate, resolving right names, and compiling `when` guards.
func compile(doc *document) (*Table, error) {
	version, err := semver.NewVersion(doc.Version)
	if err != nil {
		return nil, fmt.Errorf("policy version %q is not valid semver: %w", doc.Version, err)
	}
	constraint, err := semver.NewConstraint(supportedVersions)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version constraint: %w", err)
	}
	if !constraint.Check(version) {
		return nil, fmt.Errorf("policy version %s is not supported (want %s)", version, supportedVersions)
	}

	table := &Table{
		version: version,
		ops:     make(map[string]Operation, len(doc.Operations)),
	}

	var errs []string
	for i, opDoc := range doc.Operations {
		op, err := compileOperation(opDoc)
		if err != nil {
			errs = append(errs, fmt.Sprintf("operation %d (%s): %s", i, opDoc.Name, err.Error()))
			continue
		}
		if _, dup := table.ops[op.Name]; dup {
			errs = append(errs, fmt.Sprintf("duplicate operation %q", op.Name))
			continue
		}
		table.ops[op.Name] = op
		table.order = append(table.order, op.Name)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("policy validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return table, nil
}

func compileOperation(doc operationDoc) (Operation, error) {
	op := Operation{
		Name:          doc.Name,
		CreatesHandle: doc.CreatesHandle,
	}

	for i, checkDoc := range doc.Args {
		if checkDoc.Arg < 0 {
			return Operation{}, fmt.Errorf("check %d: negative argument position %d", i, checkDoc.Arg)
		}
		mask, err := parseRights(checkDoc.Rights)
		if err != nil {
			return Operation{}, fmt.Errorf("check %d: %w", i, err)
		}

		check := ArgCheck{Arg: checkDoc.Arg, Rights: mask}
		if checkDoc.When != "" {
			program, err := expr.Compile(checkDoc.When,
				expr.Env(CallEnv{}),
				expr.AsBool())
			if err != nil {
				return Operation{}, fmt.Errorf("check %d: invalid guard %q: %w", i, checkDoc.When, err)
			}
			check.when = program
			check.whenSrc = checkDoc.When
		}
		op.checks = append(op.checks, check)
	}

	return op, nil
}

func parseRights(names []string) (rights.Rights, error) {
	if len(names) == 0 {
		return rights.None, fmt.Errorf("empty rights list")
	}
	return rights.Parse(names)
}
