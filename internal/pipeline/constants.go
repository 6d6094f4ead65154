package pipeline

// Defaults for a blog post import. Each can be overridden via configuration.
const (
	// DefaultBlueprintName is the blueprint the rows are imported into.
	DefaultBlueprintName = "BlogPost"

	// DefaultIDColumn holds the document id. Re-imports with the same ids update in place.
	DefaultIDColumn = "id"

	// DefaultTitleColumn feeds the document title.
	DefaultTitleColumn = "title"

	// DefaultRichTextColumn is converted from HTML into a rich-text document.
	DefaultRichTextColumn = "text"

	// DefaultAssetColumn holds an external image URL to relocate.
	DefaultAssetColumn = "thumbnail"

	// DefaultStatusID is the document status written with every request.
	DefaultStatusID = 2
)

// DefaultAllowlist returns the blueprint fields every import requires.
func DefaultAllowlist() []string {
	return []string{DefaultTitleColumn, DefaultRichTextColumn, DefaultAssetColumn}
}
