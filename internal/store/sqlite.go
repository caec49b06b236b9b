package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"docvault/internal/docvault"
	"docvault/internal/model"
	"docvault/internal/store/migrations"
)

// InMemory is the path of a non-persistent store. Used by tests and the
// "memory" factory type.
const InMemory = ":memory:"

// FileName is the store database file name inside the data directory.
const FileName = "docvault.db"

// SQLiteStore implements the docvault.Store interface using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	version uint
}

// Open opens or creates the store database at path, applying any pending
// schema migrations. A data directory that cannot be created fails the
// environment precondition; that error is hard and is never retried.
func Open(path string) (*SQLiteStore, error) {
	if path != InMemory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating data directory %s: %v", docvault.ErrEnvironment, dir, err)
		}
	}
	db, err := OpenConnection(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docvault.ErrEnvironment, err)
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing schema: %w", err)
	}
	version, err := migrations.Version(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reading schema version: %w", err)
	}
	return &SQLiteStore{db: db, path: path, version: version}, nil
}

// OpenConnection opens and configures a raw SQLite connection. Exported
// for tools and tests that need the same configuration.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One shared connection: the store serializes conflicting writers
	// itself, and an in-memory database must not fan out over a pool
	// (every new pool connection would see a fresh empty database).
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring database: %w", err)
	}
	return db, nil
}

// Document operations

func (s *SQLiteStore) InsertDocument(doc *model.Document, entry *model.AuditEntry) error {
	return s.inTx(func(tx *sql.Tx) error {
		if err := insertDocument(tx, doc); err != nil {
			return err
		}
		return appendAudit(tx, entry)
	})
}

func (s *SQLiteStore) GetDocument(id string) (*model.Document, error) {
	row := s.db.QueryRowContext(context.Background(), `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) PutDocument(doc *model.Document, entry *model.AuditEntry) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encoding document metadata: %w", err)
	}
	return s.inTx(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), `
			INSERT INTO documents (id, name, content_type, content, metadata, size, hash, created_at, modified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				content_type = excluded.content_type,
				content = excluded.content,
				metadata = excluded.metadata,
				size = excluded.size,
				hash = excluded.hash,
				created_at = excluded.created_at,
				modified_at = excluded.modified_at`,
			doc.ID, doc.Name, doc.ContentType, blob(doc.Content), string(meta),
			doc.Size, doc.Hash, doc.CreatedAt.UnixNano(), doc.ModifiedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("writing document: %w", err)
		}
		return appendAudit(tx, entry)
	})
}

func (s *SQLiteStore) DeleteDocument(id string, entry *model.AuditEntry) (bool, error) {
	found := false
	err := s.inTx(func(tx *sql.Tx) error {
		res, err := tx.ExecContext(context.Background(), `DELETE FROM documents WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting document: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("counting deleted rows: %w", err)
		}
		if n == 0 {
			return nil
		}
		found = true
		return appendAudit(tx, entry)
	})
	return found, err
}

func (s *SQLiteStore) ListDocuments(q docvault.DocumentQuery) ([]*model.Document, error) {
	// The sort field wins over the index for ordering; ties always break
	// by identifier so pages are disjoint.
	col := "id"
	switch {
	case q.SortBy != "":
		col = documentSortColumn(q.SortBy)
	case q.Index != "":
		col = documentIndexColumn(q.Index)
	}
	dir := "ASC"
	if q.Direction == docvault.Descending {
		dir = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM documents ORDER BY %s %s, id ASC%s`,
		documentColumns, col, dir, limitClause(q.Page))

	rows, err := s.db.QueryContext(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (s *SQLiteStore) ListDocumentsByType(contentType string, page docvault.Page) ([]*model.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE content_type = ? ORDER BY id ASC%s`,
		documentColumns, limitClause(page))
	rows, err := s.db.QueryContext(context.Background(), query, contentType)
	if err != nil {
		return nil, fmt.Errorf("listing documents by type: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// Processing result operations

func (s *SQLiteStore) InsertResult(res *model.ProcessingResult, entry *model.AuditEntry) error {
	return s.inTx(func(tx *sql.Tx) error {
		if err := insertResult(tx, res); err != nil {
			return err
		}
		return appendAudit(tx, entry)
	})
}

func (s *SQLiteStore) ListResultsByDocument(documentID string, page docvault.Page) ([]*model.ProcessingResult, error) {
	query := fmt.Sprintf(`SELECT %s FROM processing_results WHERE document_id = ? ORDER BY created_at ASC, id ASC%s`,
		resultColumns, limitClause(page))
	rows, err := s.db.QueryContext(context.Background(), query, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing processing results: %w", err)
	}
	defer rows.Close()

	var results []*model.ProcessingResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("reading processing result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing processing results: %w", err)
	}
	return results, nil
}

// Template operations

func (s *SQLiteStore) InsertTemplate(tpl *model.DocumentTemplate, entry *model.AuditEntry) error {
	return s.inTx(func(tx *sql.Tx) error {
		if err := insertTemplate(tx, tpl); err != nil {
			return err
		}
		return appendAudit(tx, entry)
	})
}

func (s *SQLiteStore) GetTemplate(id string) (*model.DocumentTemplate, error) {
	row := s.db.QueryRowContext(context.Background(), `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	tpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding template: %w", err)
	}
	return tpl, nil
}

func (s *SQLiteStore) PutTemplate(tpl *model.DocumentTemplate, entry *model.AuditEntry) error {
	config, err := json.Marshal(tpl.Config)
	if err != nil {
		return fmt.Errorf("encoding template config: %w", err)
	}
	return s.inTx(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), `
			INSERT INTO templates (id, name, description, document_type, config, is_active, version, created_at, modified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				document_type = excluded.document_type,
				config = excluded.config,
				is_active = excluded.is_active,
				version = excluded.version,
				created_at = excluded.created_at,
				modified_at = excluded.modified_at`,
			tpl.ID, tpl.Name, tpl.Description, tpl.DocumentType, string(config),
			tpl.IsActive, tpl.Version, tpl.CreatedAt.UnixNano(), tpl.ModifiedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("writing template: %w", err)
		}
		return appendAudit(tx, entry)
	})
}

func (s *SQLiteStore) ListTemplates() ([]*model.DocumentTemplate, error) {
	rows, err := s.db.QueryContext(context.Background(), `SELECT `+templateColumns+` FROM templates ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var templates []*model.DocumentTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("reading template: %w", err)
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	return templates, nil
}

// Audit operations

func (s *SQLiteStore) AppendAudit(entry *model.AuditEntry) error {
	return appendAudit(s.db, entry)
}

func (s *SQLiteStore) ListAudit(q docvault.AuditQuery) ([]*model.AuditEntry, error) {
	// Whatever index the query names, output order is timestamp
	// descending with ties broken newest identifier first.
	query := fmt.Sprintf(`SELECT %s FROM audit_logs ORDER BY created_at DESC, id DESC%s`,
		auditColumns, limitClause(q.Page))
	rows, err := s.db.QueryContext(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		entry, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("reading audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	return entries, nil
}

// Aggregation

func (s *SQLiteStore) CountDocuments() (int64, error)    { return s.count("documents") }
func (s *SQLiteStore) CountResults() (int64, error)      { return s.count("processing_results") }
func (s *SQLiteStore) CountTemplates() (int64, error)    { return s.count("templates") }
func (s *SQLiteStore) CountAuditEntries() (int64, error) { return s.count("audit_logs") }

func (s *SQLiteStore) count(table string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

func (s *SQLiteStore) SumDocumentSizes() (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(context.Background(), `SELECT COALESCE(SUM(size), 0) FROM documents`).Scan(&total); err != nil {
		return 0, fmt.Errorf("summing document sizes: %w", err)
	}
	return total, nil
}

func (s *SQLiteStore) SchemaVersion() (uint, error) {
	return s.version, nil
}

func (s *SQLiteStore) ClearAll() (int64, error) {
	var removed int64
	err := s.inTx(func(tx *sql.Tx) error {
		// The audit auto-increment counter is left alone; cleared stores
		// keep assigning fresh identifiers.
		for _, table := range []string{"documents", "processing_results", "templates", "audit_logs"} {
			res, err := tx.ExecContext(context.Background(), `DELETE FROM `+table)
			if err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("counting cleared rows: %w", err)
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// BackupTo writes a complete copy of the database to destPath using
// VACUUM INTO. The copy is a consistent snapshot of the live store.
func (s *SQLiteStore) BackupTo(destPath string) error {
	if _, err := s.db.ExecContext(context.Background(), `VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Helpers

// execer is satisfied by *sql.DB and *sql.Tx, so the insert helpers work
// inside and outside transactions.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) inTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const documentColumns = `id, name, content_type, content, metadata, size, hash, created_at, modified_at`

func insertDocument(ex execer, doc *model.Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encoding document metadata: %w", err)
	}
	_, err = ex.ExecContext(context.Background(), `
		INSERT INTO documents (id, name, content_type, content, metadata, size, hash, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.ContentType, blob(doc.Content), string(meta),
		doc.Size, doc.Hash, doc.CreatedAt.UnixNano(), doc.ModifiedAt.UnixNano())
	if err != nil {
		if isConflict(err) {
			return fmt.Errorf("document %s: %w", doc.ID, docvault.ErrConflict)
		}
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		doc               model.Document
		meta              string
		created, modified int64
	)
	err := row.Scan(&doc.ID, &doc.Name, &doc.ContentType, &doc.Content, &meta,
		&doc.Size, &doc.Hash, &created, &modified)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("decoding document metadata: %w", err)
	}
	doc.CreatedAt = fromNanos(created)
	doc.ModifiedAt = fromNanos(modified)
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]*model.Document, error) {
	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("reading document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	return docs, nil
}

const resultColumns = `id, document_id, processing_type, data, confidence, status, error, duration_ms, algorithm_version, created_at`

func insertResult(ex execer, res *model.ProcessingResult) error {
	data, err := model.EncodeProcessingData(res.Data)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(context.Background(), `
		INSERT INTO processing_results (id, document_id, processing_type, data, confidence, status, error, duration_ms, algorithm_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.DocumentID, res.ProcessingType, string(data), res.Confidence,
		string(res.Status), res.Error, res.DurationMS, res.AlgorithmVersion, res.CreatedAt.UnixNano())
	if err != nil {
		if isConflict(err) {
			return fmt.Errorf("processing result %s: %w", res.ID, docvault.ErrConflict)
		}
		return fmt.Errorf("inserting processing result: %w", err)
	}
	return nil
}

func scanResult(row rowScanner) (*model.ProcessingResult, error) {
	var (
		res     model.ProcessingResult
		data    string
		status  string
		created int64
	)
	err := row.Scan(&res.ID, &res.DocumentID, &res.ProcessingType, &data, &res.Confidence,
		&status, &res.Error, &res.DurationMS, &res.AlgorithmVersion, &created)
	if err != nil {
		return nil, err
	}
	res.Status = model.ResultStatus(status)
	res.CreatedAt = fromNanos(created)
	res.Data, err = model.DecodeProcessingData(res.ProcessingType, []byte(data))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

const templateColumns = `id, name, description, document_type, config, is_active, version, created_at, modified_at`

func insertTemplate(ex execer, tpl *model.DocumentTemplate) error {
	config, err := json.Marshal(tpl.Config)
	if err != nil {
		return fmt.Errorf("encoding template config: %w", err)
	}
	_, err = ex.ExecContext(context.Background(), `
		INSERT INTO templates (id, name, description, document_type, config, is_active, version, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tpl.ID, tpl.Name, tpl.Description, tpl.DocumentType, string(config),
		tpl.IsActive, tpl.Version, tpl.CreatedAt.UnixNano(), tpl.ModifiedAt.UnixNano())
	if err != nil {
		if isConflict(err) {
			return fmt.Errorf("template %s: %w", tpl.ID, docvault.ErrConflict)
		}
		return fmt.Errorf("inserting template: %w", err)
	}
	return nil
}

func scanTemplate(row rowScanner) (*model.DocumentTemplate, error) {
	var (
		tpl               model.DocumentTemplate
		config            string
		created, modified int64
	)
	err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.DocumentType, &config,
		&tpl.IsActive, &tpl.Version, &created, &modified)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(config), &tpl.Config); err != nil {
		return nil, fmt.Errorf("decoding template config: %w", err)
	}
	tpl.CreatedAt = fromNanos(created)
	tpl.ModifiedAt = fromNanos(modified)
	return &tpl, nil
}

const auditColumns = `id, created_at, user_hash, action, resource_type, resource_id, details, ip_hash, user_agent, result, error`

// appendAudit inserts an audit entry and writes the store-assigned key
// back into entry.ID. A nil entry is a no-op, so mutations without an
// audit side effect can share the transaction helpers.
func appendAudit(ex execer, entry *model.AuditEntry) error {
	if entry == nil {
		return nil
	}
	details := ""
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("encoding audit details: %w", err)
		}
		details = string(raw)
	}
	res, err := ex.ExecContext(context.Background(), `
		INSERT INTO audit_logs (created_at, user_hash, action, resource_type, resource_id, details, ip_hash, user_agent, result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CreatedAt.UnixNano(), entry.UserHash, entry.Action, entry.ResourceType,
		entry.ResourceID, details, entry.IPHash, entry.UserAgent, string(entry.Result), entry.Error)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading audit entry key: %w", err)
	}
	entry.ID = id
	return nil
}

func scanAudit(row rowScanner) (*model.AuditEntry, error) {
	var (
		entry   model.AuditEntry
		details string
		result  string
		created int64
	)
	err := row.Scan(&entry.ID, &created, &entry.UserHash, &entry.Action, &entry.ResourceType,
		&entry.ResourceID, &details, &entry.IPHash, &entry.UserAgent, &result, &entry.Error)
	if err != nil {
		return nil, err
	}
	if details != "" {
		if err := json.Unmarshal([]byte(details), &entry.Details); err != nil {
			return nil, fmt.Errorf("decoding audit details: %w", err)
		}
	}
	entry.Result = model.AuditResult(result)
	entry.CreatedAt = fromNanos(created)
	return &entry, nil
}

func documentSortColumn(f docvault.DocumentSortField) string {
	switch f {
	case docvault.SortByName:
		return "name"
	case docvault.SortByType:
		return "content_type"
	case docvault.SortBySize:
		return "size"
	case docvault.SortByCreated:
		return "created_at"
	case docvault.SortByModified:
		return "modified_at"
	default:
		return "id"
	}
}

func documentIndexColumn(idx docvault.DocumentIndex) string {
	switch idx {
	case docvault.DocumentByType:
		return "content_type"
	case docvault.DocumentByCreated:
		return "created_at"
	case docvault.DocumentByModified:
		return "modified_at"
	case docvault.DocumentBySize:
		return "size"
	case docvault.DocumentByName:
		return "name"
	default:
		return "id"
	}
}

// limitClause renders pagination. SQLite needs a LIMIT before OFFSET can
// be used; -1 means unlimited.
func limitClause(p docvault.Page) string {
	if p.Limit <= 0 && p.Offset <= 0 {
		return ""
	}
	limit := p.Limit
	if limit <= 0 {
		limit = -1
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, p.Offset)
}

// blob guards NOT NULL blob columns against nil slices.
func blob(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// isConflict reports whether err is a primary key or unique constraint
// violation.
func isConflict(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		serr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// Compile-time check that SQLiteStore implements the docvault.Store interface
var _ docvault.Store = (*SQLiteStore)(nil)
