// Package notionsync writes imported documents into a Notion database. The
// database plays the role of the blueprint: its properties are the fields and
// its id is the blueprint id.
package notionsync

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jomei/notionapi"

	"github.com/dvloznov/blueprint-importer/internal/domain"
	"github.com/dvloznov/blueprint-importer/internal/logger"
)

// DefaultIDProperty is the rich text property that stores the source document id.
const DefaultIDProperty = "Document ID"

// Backend adapts a Notion workspace to blueprint lookup and batch writes.
type Backend struct {
	notion     NotionService
	idProperty string
}

// NewBackend creates a Backend. An empty idProperty selects DefaultIDProperty.
func NewBackend(notion NotionService, idProperty string) *Backend {
	if idProperty == "" {
		idProperty = DefaultIDProperty
	}
	return &Backend{notion: notion, idProperty: idProperty}
}

// GetBlueprintByName treats name as a database id. It returns (nil, nil) when
// Notion reports the database as missing or not shared with the integration.
func (b *Backend) GetBlueprintByName(ctx context.Context, _ string, name string) (*domain.Blueprint, error) {
	db, err := b.notion.GetDatabase(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "GetBlueprintByName: %s", name)
	}
	return DatabaseToBlueprint(db), nil
}

// PutManyDocuments upserts each document as a page. Pages are matched to
// documents through the id property; matched pages are updated, the rest are
// created. Per-page failures land in the result and do not stop the batch.
func (b *Backend) PutManyDocuments(ctx context.Context, _ string, docs []domain.DocumentWriteRequest) (*domain.BatchResult, error) {
	log := logger.FromContext(ctx)
	result := &domain.BatchResult{}
	if len(docs) == 0 {
		return result, nil
	}

	databaseID := docs[0].BlueprintID
	db, err := b.notion.GetDatabase(ctx, databaseID)
	if err != nil {
		return nil, errors.Wrapf(err, "PutManyDocuments: load database %s", databaseID)
	}
	types := propertyTypes(db)

	existing, err := b.existingPages(ctx, databaseID)
	if err != nil {
		return nil, errors.Wrap(err, "PutManyDocuments")
	}

	log.Info().
		Str("database_id", databaseID).
		Int("document_count", len(docs)).
		Int("existing_pages", len(existing)).
		Msg("Writing documents to Notion")

	var created, updated int
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "PutManyDocuments")
		}

		props, skipped := DocumentToNotionProperties(doc, types)
		if len(skipped) > 0 {
			log.Debug().
				Str("document_id", doc.DocumentID).
				Strs("properties", skipped).
				Msg("Skipped fields the database cannot hold")
		}
		if doc.DocumentID != "" {
			if _, ok := types[b.idProperty]; ok {
				props[b.idProperty] = notionapi.RichTextProperty{RichText: textChunks(doc.DocumentID)}
			}
		}

		if pageID, ok := existing[doc.DocumentID]; ok && doc.DocumentID != "" {
			if _, err := b.notion.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().
					Err(err).
					Str("document_id", doc.DocumentID).
					Str("page_id", pageID).
					Msg("Failed to update Notion page")
				result.Errors = append(result.Errors, documentError(doc.DocumentID, err))
				continue
			}
			updated++
			result.SuccessfulDocumentIDs = append(result.SuccessfulDocumentIDs, doc.DocumentID)
			continue
		}

		page, err := b.notion.CreatePage(ctx, databaseID, props)
		if err != nil {
			log.Warn().
				Err(err).
				Str("document_id", doc.DocumentID).
				Msg("Failed to create Notion page")
			result.Errors = append(result.Errors, documentError(doc.DocumentID, err))
			continue
		}
		created++

		id := doc.DocumentID
		if id == "" {
			id = string(page.ID)
		}
		result.SuccessfulDocumentIDs = append(result.SuccessfulDocumentIDs, id)
	}

	log.Info().
		Int("created", created).
		Int("updated", updated).
		Int("failed", len(result.Errors)).
		Msg("Notion write completed")

	return result, nil
}

// existingPages maps stored document ids to page ids.
func (b *Backend) existingPages(ctx context.Context, databaseID string) (map[string]string, error) {
	pages, err := queryAllNotionPages(ctx, b.notion, databaseID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(pages))
	for _, page := range pages {
		if id := extractDocumentID(page, b.idProperty); id != "" {
			out[id] = string(page.ID)
		}
	}
	return out, nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

// extractDocumentID reads the stored document id from a page.
// Returns empty string if not found.
func extractDocumentID(page notionapi.Page, property string) string {
	prop, ok := page.Properties[property]
	if !ok {
		return ""
	}
	var parts []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		parts = p.RichText
	case *notionapi.TitleProperty:
		parts = p.Title
	}
	var sb strings.Builder
	for _, rt := range parts {
		sb.WriteString(rt.PlainText)
	}
	return sb.String()
}

func propertyTypes(db *notionapi.Database) map[string]string {
	types := make(map[string]string, len(db.Properties))
	for name, cfg := range db.Properties {
		if cfg != nil {
			types[name] = string(cfg.GetType())
		}
	}
	return types
}

func documentError(documentID string, err error) domain.DocumentError {
	msg := err.Error()
	if len(msg) > 2000 {
		msg = msg[:2000]
	}
	return domain.DocumentError{DocumentID: documentID, Message: msg}
}

func isNotFound(err error) bool {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusNotFound
	}
	return false
}
