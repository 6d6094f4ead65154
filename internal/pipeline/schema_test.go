package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	crdb "github.com/cockroachdb/errors"

	"github.com/dvloznov/blueprint-importer/internal/domain"
)

func TestResolveSchema(t *testing.T) {
	allowlist := DefaultAllowlist()

	tests := []struct {
		name      string
		allowlist []string // nil uses the default allowlist
		blueprint *domain.Blueprint
		repoErr   error
		wantErr   error
		wantHint  string
		wantIDs   map[string]string
	}{
		{
			name:      "blueprint with all required fields",
			blueprint: blogBlueprint(),
			wantIDs:   map[string]string{"title": "f-title", "text": "f-text", "thumbnail": "f-thumb"},
		},
		{
			name:     "blueprint not found",
			wantErr:  ErrSchemaNotFound,
			wantHint: `create a blueprint named "BlogPost"`,
		},
		{
			name: "missing required field",
			blueprint: &domain.Blueprint{BlueprintID: "bp", Groups: [][]domain.BlueprintField{{
				{Name: "title", FieldID: "1"},
				{Name: "text", FieldID: "2"},
			}}},
			wantErr:  ErrSchemaFieldMismatch,
			wantHint: "add the fields thumbnail",
		},
		{
			name: "duplicated required field",
			blueprint: &domain.Blueprint{BlueprintID: "bp", Groups: [][]domain.BlueprintField{{
				{Name: "title", FieldID: "1"},
				{Name: "title", FieldID: "1b"},
				{Name: "text", FieldID: "2"},
				{Name: "thumbnail", FieldID: "3"},
			}}},
			wantErr:  ErrSchemaFieldMismatch,
			wantHint: "remove duplicate fields title",
		},
		{
			name:      "repeated allowlist name",
			allowlist: []string{"title", "title", "text"},
			blueprint: blogBlueprint(),
			wantErr:   ErrSchemaFieldMismatch,
			wantHint:  "list title only once in the allowlist",
		},
		{
			name:      "repeated allowlist name with a duplicated field",
			allowlist: []string{"title", "title"},
			blueprint: &domain.Blueprint{BlueprintID: "bp", Groups: [][]domain.BlueprintField{{
				{Name: "title", FieldID: "1"},
				{Name: "title", FieldID: "1b"},
			}}},
			wantErr:  ErrSchemaFieldMismatch,
			wantHint: "list title only once in the allowlist",
		},
		{
			name: "only the first group is read",
			blueprint: &domain.Blueprint{BlueprintID: "bp", Groups: [][]domain.BlueprintField{
				{{Name: "title", FieldID: "1"}, {Name: "text", FieldID: "2"}},
				{{Name: "thumbnail", FieldID: "3"}},
			}},
			wantErr: ErrSchemaFieldMismatch,
		},
		{
			name:      "blueprint without groups",
			blueprint: &domain.Blueprint{BlueprintID: "bp"},
			wantErr:   ErrSchemaFieldMismatch,
		},
		{
			name:    "repository failure",
			repoErr: errors.New("unauthorized"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := allowlist
			if tt.allowlist != nil {
				names = tt.allowlist
			}
			repo := &fakeSchemaSource{blueprint: tt.blueprint, err: tt.repoErr}
			schema, err := ResolveSchema(context.Background(), repo, "proj", DefaultBlueprintName, names)

			if tt.repoErr != nil {
				if err == nil || !strings.Contains(err.Error(), "unauthorized") {
					t.Fatalf("ResolveSchema() error = %v, want wrapped repository error", err)
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveSchema() error = %v, want %v", err, tt.wantErr)
				}
				if tt.wantHint != "" {
					hints := strings.Join(crdb.GetAllHints(err), "\n")
					if !strings.Contains(hints, tt.wantHint) {
						t.Errorf("hints = %q, want to contain %q", hints, tt.wantHint)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveSchema() unexpected error: %v", err)
			}

			if schema.BlueprintID != "bp-blog" {
				t.Errorf("BlueprintID = %q, want bp-blog", schema.BlueprintID)
			}
			if len(schema.Fields) != len(allowlist) {
				t.Errorf("got %d fields, want %d", len(schema.Fields), len(allowlist))
			}
			for name, id := range tt.wantIDs {
				f, ok := schema.Lookup(name)
				if !ok || f.FieldID != id {
					t.Errorf("Lookup(%q) = %+v, %v; want id %q", name, f, ok, id)
				}
			}
			if _, ok := schema.Lookup("author"); ok {
				t.Error("fields outside the allowlist must not be resolved")
			}
		})
	}
}
