package caisy

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/dvloznov/blueprint-importer/internal/domain"
)

const getBlueprintByNameQuery = `query GetBlueprintByName($input: GetBlueprintByNameRequest) {
  GetBlueprintByName(input: $input) {
    blueprint {
      blueprintId
      name
      groups {
        name
        fields {
          blueprintFieldId
          name
          type
        }
      }
    }
  }
}`

type blueprintField struct {
	BlueprintFieldID string `json:"blueprintFieldId"`
	Name             string `json:"name"`
	Type             string `json:"type"`
}

type blueprintGroup struct {
	Name   string            `json:"name"`
	Fields []*blueprintField `json:"fields"`
}

type blueprint struct {
	BlueprintID string            `json:"blueprintId"`
	Name        string            `json:"name"`
	Groups      []*blueprintGroup `json:"groups"`
}

type getBlueprintByNameData struct {
	GetBlueprintByName *struct {
		Blueprint *blueprint `json:"blueprint"`
	} `json:"GetBlueprintByName"`
}

// GetBlueprintByName fetches a blueprint definition. It returns (nil, nil)
// when the project has no blueprint with that name.
func (c *Client) GetBlueprintByName(ctx context.Context, projectID, name string) (*domain.Blueprint, error) {
	var data getBlueprintByNameData
	err := c.do(ctx, getBlueprintByNameQuery, map[string]any{
		"input": map[string]any{
			"blueprintName": name,
			"projectId":     projectID,
		},
	}, &data)
	if err != nil {
		return nil, errors.Wrapf(err, "GetBlueprintByName: %s", name)
	}

	if data.GetBlueprintByName == nil || data.GetBlueprintByName.Blueprint == nil {
		return nil, nil
	}

	bp := data.GetBlueprintByName.Blueprint
	out := &domain.Blueprint{
		BlueprintID: bp.BlueprintID,
		Name:        bp.Name,
	}
	for _, g := range bp.Groups {
		if g == nil {
			out.Groups = append(out.Groups, nil)
			continue
		}
		fields := make([]domain.BlueprintField, 0, len(g.Fields))
		for _, f := range g.Fields {
			if f == nil {
				continue
			}
			fields = append(fields, domain.BlueprintField{
				Name:    f.Name,
				FieldID: f.BlueprintFieldID,
				Type:    f.Type,
			})
		}
		out.Groups = append(out.Groups, fields)
	}
	return out, nil
}
