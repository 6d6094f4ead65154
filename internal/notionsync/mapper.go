package notionsync

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/blueprint-importer/internal/domain"
	"github.com/dvloznov/blueprint-importer/internal/richtext"
)

// Notion property types the importer can write.
const (
	PropertyTitle    = "title"
	PropertyRichText = "rich_text"
	PropertyURL      = "url"
	PropertyFiles    = "files"
)

// maxTextContent is the Notion limit for a single rich text object.
const maxTextContent = 2000

// DatabaseToBlueprint converts a database schema into a single-group blueprint.
// Notion addresses properties by name, so a property's name doubles as its field id.
func DatabaseToBlueprint(db *notionapi.Database) *domain.Blueprint {
	bp := &domain.Blueprint{
		BlueprintID: string(db.ID),
		Name:        databaseTitle(db),
	}

	fields := make([]domain.BlueprintField, 0, len(db.Properties))
	for name, cfg := range db.Properties {
		if cfg == nil {
			continue
		}
		fields = append(fields, domain.BlueprintField{
			Name:    name,
			FieldID: name,
			Type:    string(cfg.GetType()),
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	bp.Groups = [][]domain.BlueprintField{fields}
	return bp
}

// DocumentToNotionProperties converts a document write into page properties.
// types maps property name to property type. Fields naming an unknown
// property, or carrying a value the property type cannot hold, are skipped
// and returned by name so the caller can report them.
func DocumentToNotionProperties(doc domain.DocumentWriteRequest, types map[string]string) (notionapi.Properties, []string) {
	props := notionapi.Properties{}
	var skipped []string

	for _, f := range doc.Fields {
		propType, ok := types[f.FieldID]
		if !ok {
			skipped = append(skipped, f.FieldID)
			continue
		}
		prop := toProperty(propType, f.Data)
		if prop == nil {
			skipped = append(skipped, f.FieldID)
			continue
		}
		props[f.FieldID] = prop
	}

	// The page title falls back to the document title.
	if titleProp := titlePropertyName(types); titleProp != "" && doc.Title != "" {
		if _, set := props[titleProp]; !set {
			props[titleProp] = notionapi.TitleProperty{Title: textChunks(doc.Title)}
		}
	}

	return props, skipped
}

func toProperty(propType string, data any) notionapi.Property {
	switch propType {
	case PropertyTitle:
		text := stringValue(data)
		if text == "" {
			return nil
		}
		return notionapi.TitleProperty{Title: textChunks(text)}

	case PropertyRichText:
		text := stringValue(data)
		if text == "" {
			return nil
		}
		return notionapi.RichTextProperty{RichText: textChunks(text)}

	case PropertyURL:
		urls := listValue(data)
		if len(urls) == 0 {
			return nil
		}
		return notionapi.URLProperty{URL: urls[0]}

	case PropertyFiles:
		urls := listValue(data)
		if len(urls) == 0 {
			return nil
		}
		files := make([]notionapi.File, 0, len(urls))
		for _, u := range urls {
			files = append(files, notionapi.File{
				Name:     fileName(u),
				Type:     notionapi.FileTypeExternal,
				External: &notionapi.FileObject{URL: u},
			})
		}
		return notionapi.FilesProperty{Files: files}
	}
	return nil
}

// stringValue flattens a field value to text.
func stringValue(data any) string {
	switch v := data.(type) {
	case string:
		return v
	case *richtext.Document:
		return richtext.PlainText(v)
	case []string:
		return strings.Join(v, "\n")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func listValue(data any) []string {
	switch v := data.(type) {
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// textChunks splits content into rich text objects within the Notion size limit.
func textChunks(content string) []notionapi.RichText {
	runes := []rune(content)
	var out []notionapi.RichText
	for len(runes) > 0 {
		n := len(runes)
		if n > maxTextContent {
			n = maxTextContent
		}
		out = append(out, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: string(runes[:n])},
		})
		runes = runes[n:]
	}
	return out
}

func fileName(rawURL string) string {
	name := path.Base(strings.SplitN(rawURL, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		return rawURL
	}
	return name
}

func titlePropertyName(types map[string]string) string {
	for name, t := range types {
		if t == PropertyTitle {
			return name
		}
	}
	return ""
}

func databaseTitle(db *notionapi.Database) string {
	var parts []string
	for _, t := range db.Title {
		parts = append(parts, t.PlainText)
	}
	return strings.Join(parts, "")
}

