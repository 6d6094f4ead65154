package domain

// BlueprintField is one schema field descriptor of a blueprint.
type BlueprintField struct {
	Name    string `json:"name"`
	FieldID string `json:"blueprintFieldId"`
	Type    string `json:"type,omitempty"` // backend specific, e.g. RICHTEXT or rich_text
}

// Blueprint is the schema definition of a document type as returned by the
// content repository. Fields are grouped; the importer only reads Groups[0].
type Blueprint struct {
	BlueprintID string
	Name        string
	Groups      [][]BlueprintField
}

// AssetReference points at an asset document inside the content repository.
// A nil *AssetReference means "no asset for this row".
type AssetReference struct {
	DocumentID string
}

// AssetMeta is the metadata sent along with uploaded asset bytes.
type AssetMeta struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
}
