package docvault

import (
	"fmt"

	"docvault/internal/model"
)

// DocumentIndex names a secondary index on the documents collection.
// Index names form a closed set; unknown names are rejected rather than
// silently falling back to a full scan.
type DocumentIndex string

const (
	DocumentByType     DocumentIndex = "type"
	DocumentByCreated  DocumentIndex = "created"
	DocumentByModified DocumentIndex = "modified"
	DocumentBySize     DocumentIndex = "size"
	DocumentByName     DocumentIndex = "name"
)

// ParseDocumentIndex validates a free-form index name from an outer surface.
func ParseDocumentIndex(s string) (DocumentIndex, error) {
	switch idx := DocumentIndex(s); idx {
	case DocumentByType, DocumentByCreated, DocumentByModified, DocumentBySize, DocumentByName:
		return idx, nil
	default:
		return "", fmt.Errorf("unknown document index: %s", s)
	}
}

// DocumentSortField names a sortable document field.
type DocumentSortField string

const (
	SortByID       DocumentSortField = "id"
	SortByName     DocumentSortField = "name"
	SortByType     DocumentSortField = "type"
	SortBySize     DocumentSortField = "size"
	SortByCreated  DocumentSortField = "created"
	SortByModified DocumentSortField = "modified"
)

// ParseDocumentSortField validates a free-form sort field name.
func ParseDocumentSortField(s string) (DocumentSortField, error) {
	switch f := DocumentSortField(s); f {
	case SortByID, SortByName, SortByType, SortBySize, SortByCreated, SortByModified:
		return f, nil
	default:
		return "", fmt.Errorf("unknown sort field: %s", s)
	}
}

// SortDirection orders query results.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// AuditIndex names a secondary index on the audit log collection.
type AuditIndex string

const (
	AuditByTimestamp    AuditIndex = "timestamp"
	AuditByUser         AuditIndex = "user"
	AuditByAction       AuditIndex = "action"
	AuditByResourceType AuditIndex = "resource_type"
	AuditByResult       AuditIndex = "result"
)

// ParseAuditIndex validates a free-form audit index name.
func ParseAuditIndex(s string) (AuditIndex, error) {
	switch idx := AuditIndex(s); idx {
	case AuditByTimestamp, AuditByUser, AuditByAction, AuditByResourceType, AuditByResult:
		return idx, nil
	default:
		return "", fmt.Errorf("unknown audit index: %s", s)
	}
}

// Page slices a result set after ordering. A zero Limit means no limit.
type Page struct {
	Offset int
	Limit  int
}

// DocumentQuery controls retrieval and ordering for ListDocuments.
// When SortBy is empty the index establishes the order; when both are
// empty records come back in identifier order. Ties are broken by
// identifier so pagination is deterministic.
type DocumentQuery struct {
	Index     DocumentIndex
	SortBy    DocumentSortField
	Direction SortDirection
	Page      Page
}

// AuditQuery controls retrieval for AuditEntries. Whatever index is named,
// results are always ordered newest first.
type AuditQuery struct {
	Index AuditIndex
	Page  Page
}

// Store provides persistence for the four record collections. Mutating
// methods that accept an audit entry append it atomically, in the same
// transaction as the mutation.
type Store interface {
	// Document operations

	// InsertDocument creates a new document. Returns ErrConflict if the
	// identifier already exists; nothing is written in that case.
	InsertDocument(doc *model.Document, entry *model.AuditEntry) error

	// GetDocument returns a document by identifier, or nil if absent.
	GetDocument(id string) (*model.Document, error)

	// PutDocument writes a document unconditionally, overwriting any
	// existing record with the same identifier.
	PutDocument(doc *model.Document, entry *model.AuditEntry) error

	// DeleteDocument removes a document by identifier. The audit entry is
	// appended only when a record was actually deleted. Returns whether a
	// record was found.
	DeleteDocument(id string, entry *model.AuditEntry) (bool, error)

	// ListDocuments returns documents ordered and sliced per the query.
	ListDocuments(q DocumentQuery) ([]*model.Document, error)

	// ListDocumentsByType returns documents whose content type equals
	// contentType exactly, via the by-type index.
	ListDocumentsByType(contentType string, page Page) ([]*model.Document, error)

	// Processing result operations

	// InsertResult creates a new processing result. Results are immutable
	// once written.
	InsertResult(res *model.ProcessingResult, entry *model.AuditEntry) error

	// ListResultsByDocument returns results referencing the document, via
	// the by-document index, oldest first.
	ListResultsByDocument(documentID string, page Page) ([]*model.ProcessingResult, error)

	// Template operations

	// InsertTemplate creates a new template. Returns ErrConflict if the
	// identifier already exists.
	InsertTemplate(tpl *model.DocumentTemplate, entry *model.AuditEntry) error

	// GetTemplate returns a template by identifier, or nil if absent.
	GetTemplate(id string) (*model.DocumentTemplate, error)

	// PutTemplate writes a template unconditionally.
	PutTemplate(tpl *model.DocumentTemplate, entry *model.AuditEntry) error

	// ListTemplates returns every template in identifier order.
	ListTemplates() ([]*model.DocumentTemplate, error)

	// Audit operations

	// AppendAudit inserts an audit entry and assigns entry.ID from the
	// store's auto-incrementing key.
	AppendAudit(entry *model.AuditEntry) error

	// ListAudit returns audit entries ordered newest first.
	ListAudit(q AuditQuery) ([]*model.AuditEntry, error)

	// Aggregation

	CountDocuments() (int64, error)
	CountResults() (int64, error)
	CountTemplates() (int64, error)
	CountAuditEntries() (int64, error)

	// SumDocumentSizes totals the original byte size over all documents.
	SumDocumentSizes() (int64, error)

	// SchemaVersion reports the applied schema version.
	SchemaVersion() (uint, error)

	// ClearAll empties all four collections. Returns the number of records
	// removed. Emits no audit entries.
	ClearAll() (int64, error)

	// BackupTo writes a consistent copy of the store to the given file path.
	BackupTo(path string) error

	// Close closes the store connection.
	Close() error
}

// StoreOpener lazily opens a Store. The service invokes it once, on first
// use, sharing the result across concurrent first callers.
type StoreOpener func() (Store, error)
