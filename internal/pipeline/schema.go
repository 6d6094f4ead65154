package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dvloznov/blueprint-importer/internal/domain"
)

var (
	// ErrSchemaNotFound means the repository has no blueprint with the requested name.
	ErrSchemaNotFound = errors.New("blueprint not found")

	// ErrSchemaFieldMismatch means the blueprint does not carry exactly the required fields.
	ErrSchemaFieldMismatch = errors.New("blueprint fields do not match the required fields")
)

// ResolvedSchema is a blueprint restricted to the required field names.
type ResolvedSchema struct {
	BlueprintID string
	Fields      []domain.BlueprintField

	byName map[string]domain.BlueprintField
}

// NewResolvedSchema builds the name lookup for fields.
func NewResolvedSchema(blueprintID string, fields []domain.BlueprintField) *ResolvedSchema {
	s := &ResolvedSchema{
		BlueprintID: blueprintID,
		Fields:      fields,
		byName:      make(map[string]domain.BlueprintField, len(fields)),
	}
	for _, f := range fields {
		s.byName[f.Name] = f
	}
	return s
}

// Lookup finds a field by exact name.
func (s *ResolvedSchema) Lookup(name string) (domain.BlueprintField, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// ResolveSchema fetches the blueprint and keeps the fields of its first group
// whose names are in the allowlist. The result must hold one field per
// allowlisted name; a missing or duplicated field fails the run.
func ResolveSchema(ctx context.Context, repo SchemaSource, projectID, blueprintName string, allowlist []string) (*ResolvedSchema, error) {
	bp, err := repo.GetBlueprintByName(ctx, projectID, blueprintName)
	if err != nil {
		return nil, errors.Wrapf(err, "ResolveSchema: query blueprint %q", blueprintName)
	}
	if bp == nil {
		return nil, errors.WithHintf(
			errors.Wrapf(ErrSchemaNotFound, "ResolveSchema: %q", blueprintName),
			"create a blueprint named %q with the fields %s", blueprintName, strings.Join(allowlist, ", "))
	}

	allowed := make(map[string]bool, len(allowlist))
	for _, name := range allowlist {
		allowed[name] = true
	}

	var groupFields []domain.BlueprintField
	if len(bp.Groups) > 0 {
		groupFields = bp.Groups[0]
	}

	var fields []domain.BlueprintField
	for _, f := range groupFields {
		if allowed[f.Name] {
			fields = append(fields, f)
		}
	}

	// A repeated allowlist name never resolves, whatever the blueprint holds.
	if len(fields) != len(allowlist) || len(allowed) != len(allowlist) {
		missing, duplicated, repeated := fieldDiff(allowlist, fields)
		err := errors.Wrapf(ErrSchemaFieldMismatch, "ResolveSchema: %q has %d of %d required fields",
			blueprintName, len(fields), len(allowlist))
		return nil, errors.WithHint(err, mismatchHint(blueprintName, missing, duplicated, repeated))
	}

	return NewResolvedSchema(bp.BlueprintID, fields), nil
}

// fieldDiff lists allowlisted names with no field, names present more than
// once in the blueprint and names repeated in the allowlist.
func fieldDiff(allowlist []string, fields []domain.BlueprintField) (missing, duplicated, repeated []string) {
	counts := make(map[string]int, len(fields))
	for _, f := range fields {
		counts[f.Name]++
	}
	seen := make(map[string]int, len(allowlist))
	for _, name := range allowlist {
		seen[name]++
		if seen[name] > 1 {
			if seen[name] == 2 {
				repeated = append(repeated, name)
			}
			continue
		}
		switch n := counts[name]; {
		case n == 0:
			missing = append(missing, name)
		case n > 1:
			duplicated = append(duplicated, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(duplicated)
	sort.Strings(repeated)
	return missing, duplicated, repeated
}

func mismatchHint(blueprintName string, missing, duplicated, repeated []string) string {
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("add the fields %s to the first group of %q", strings.Join(missing, ", "), blueprintName))
	}
	if len(duplicated) > 0 {
		parts = append(parts, fmt.Sprintf("remove duplicate fields %s", strings.Join(duplicated, ", ")))
	}
	if len(repeated) > 0 {
		parts = append(parts, fmt.Sprintf("list %s only once in the allowlist", strings.Join(repeated, ", ")))
	}
	return strings.Join(parts, "; ")
}
