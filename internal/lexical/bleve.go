// Package lexical provides the Bleve implementation of Index.
package lexical

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/clinbrief/clinbrief/internal/models"
)

// indexedDocument is the shape stored in Bleve. Quality is stored but not
// part of ranking math; display fields are resolved from the document store,
// so Bleve only needs the searchable text.
type indexedDocument struct {
	Title    string  `json:"title"`
	Abstract string  `json:"abstract"`
	Body     string  `json:"body"`
	Authors  string  `json:"authors"`
	Category string  `json:"category"`
	Quality  float64 `json:"quality"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// The English analyzer stems terms the same way at index and query time, so
// searching the exact indexed text is guaranteed to match.
// If the mapping changes in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = en.AnalyzerName
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("abstract", textFieldMapping)
	docMapping.AddFieldMappingsAt("body", textFieldMapping)
	docMapping.AddFieldMappingsAt("authors", textFieldMapping)
	docMapping.AddFieldMappingsAt("category", bleve.NewKeywordFieldMapping())
	qualityMapping := bleve.NewNumericFieldMapping()
	qualityMapping.Index = false
	docMapping.AddFieldMappingsAt("quality", qualityMapping)
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index inserts or replaces a document by id. Bleve replaces natively when
// the same id is indexed again, so no stale version survives.
func (b *BleveIndex) Index(ctx context.Context, doc *models.Document) error {
	return b.index.Index(doc.ID, &indexedDocument{
		Title:    doc.Title,
		Abstract: doc.Abstract,
		Body:     doc.Body,
		Authors:  doc.Authors,
		Category: doc.Category,
		Quality:  doc.Quality,
	})
}

// Search runs a multi-field match disjunction and returns up to topK results
// tagged with the lexical method. An empty index yields an empty slice, not
// an error. When fields is empty, DefaultFields (title, abstract, body) are used.
func (b *BleveIndex) Search(ctx context.Context, query string, topK int, fields []string) ([]*models.ScoredResult, error) {
	if topK <= 0 {
		return []*models.ScoredResult{}, nil
	}
	if len(fields) == 0 {
		fields = DefaultFields
	}

	queries := make([]blevequery.Query, 0, len(fields))
	for _, field := range fields {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		queries = append(queries, mq)
	}
	var q blevequery.Query
	if len(queries) == 1 {
		q = queries[0]
	} else {
		q = bleve.NewDisjunctionQuery(queries...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = topK
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	out := make([]*models.ScoredResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &models.ScoredResult{
			DocumentID: hit.ID,
			Score:      hit.Score,
			Method:     models.MethodLexical,
			Rank:       i + 1,
		}
	}
	return out, nil
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
