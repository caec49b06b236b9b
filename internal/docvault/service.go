package docvault

import (
	"fmt"
	"sync"
	"time"

	"docvault/internal/model"
)

// Service is the persistence and audit layer over the four record
// collections. Every public operation is timed and wrapped in a Result
// envelope; mutating operations append exactly one audit entry in the same
// store transaction as the mutation.
type Service struct {
	open   StoreOpener
	actor  Actor
	logger Logger
	clock  Clock

	mu      sync.Mutex
	store   Store
	openErr error
	closed  bool
}

// NewService creates a Service. The store is opened lazily on first use;
// concurrent first callers await a single shared open. The actor identifies
// who performs operations on audit entries.
func NewService(open StoreOpener, actor Actor, logger Logger, clock Clock) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Service{
		open:   open,
		actor:  actor,
		logger: logger,
		clock:  clock,
	}
}

// connect returns the shared store, opening it on first call. An open
// failure is remembered and returned to all later callers; environment
// preconditions are not retried.
func (s *Service) connect() (Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.store != nil {
		return s.store, nil
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	st, err := s.open()
	if err != nil {
		s.openErr = err
		s.logger.Error("store open failed", "error", err)
		return nil, err
	}
	s.store = st
	s.logger.Debug("store opened")
	return st, nil
}

// Close tears down the store connection. Operations issued after Close fail
// through the result envelope rather than crashing.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.store == nil {
		return nil
	}
	st := s.store
	s.store = nil
	return st.Close()
}

// BackupTo writes a consistent copy of the store to the given file path.
func (s *Service) BackupTo(path string) error {
	st, err := s.connect()
	if err != nil {
		return err
	}
	return st.BackupTo(path)
}

func (s *Service) since(start time.Time) time.Duration {
	return s.clock.Now().Sub(start)
}

// AddDocument inserts a new document. The record is stored exactly as
// given; a duplicate identifier fails without mutating state. On success an
// audit entry with action document_add is appended atomically.
func (s *Service) AddDocument(doc *model.Document) Result[*model.Document] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[*model.Document](err, s.since(start))
	}
	entry := s.newEntry(ActionDocumentAdd, ResourceDocument, doc.ID, map[string]any{
		"name": doc.Name,
		"type": doc.ContentType,
		"size": doc.Size,
	})
	if err := st.InsertDocument(doc, entry); err != nil {
		s.logger.Error("document add failed", "id", doc.ID, "error", err)
		return fail[*model.Document](err, s.since(start))
	}
	s.logger.Info("document added", "id", doc.ID, "name", doc.Name, "size", doc.Size)
	return succeed(doc, 1, s.since(start))
}

// GetDocument fetches a document by identifier. Absence is not an error:
// the envelope reports success with nil data and zero records affected.
func (s *Service) GetDocument(id string) Result[*model.Document] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[*model.Document](err, s.since(start))
	}
	doc, err := st.GetDocument(id)
	if err != nil {
		s.logger.Error("document get failed", "id", id, "error", err)
		return fail[*model.Document](err, s.since(start))
	}
	if doc == nil {
		return succeed[*model.Document](nil, 0, s.since(start))
	}
	return succeed(doc, 1, s.since(start))
}

// UpdateDocument overwrites the stored record. ModifiedAt is always set to
// the current time before writing; the caller's value is ignored. Appends
// an audit entry with action document_update.
func (s *Service) UpdateDocument(doc *model.Document) Result[*model.Document] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[*model.Document](err, s.since(start))
	}
	doc.ModifiedAt = s.clock.Now()
	entry := s.newEntry(ActionDocumentUpdate, ResourceDocument, doc.ID, map[string]any{
		"name": doc.Name,
		"type": doc.ContentType,
		"size": doc.Size,
	})
	if err := st.PutDocument(doc, entry); err != nil {
		s.logger.Error("document update failed", "id", doc.ID, "error", err)
		return fail[*model.Document](err, s.since(start))
	}
	s.logger.Info("document updated", "id", doc.ID)
	return succeed(doc, 1, s.since(start))
}

// DeleteDocument removes a document by identifier. Deletion is idempotent:
// a missing identifier still succeeds with zero records affected. The
// record is looked up first so the audit entry carries its name and type;
// the entry is appended only when a record was actually deleted.
func (s *Service) DeleteDocument(id string) Result[struct{}] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[struct{}](err, s.since(start))
	}
	doc, err := st.GetDocument(id)
	if err != nil {
		s.logger.Error("document delete lookup failed", "id", id, "error", err)
		return fail[struct{}](err, s.since(start))
	}
	if doc == nil {
		return succeed(struct{}{}, 0, s.since(start))
	}
	entry := s.newEntry(ActionDocumentDelete, ResourceDocument, id, map[string]any{
		"name": doc.Name,
		"type": doc.ContentType,
	})
	deleted, err := st.DeleteDocument(id, entry)
	if err != nil {
		s.logger.Error("document delete failed", "id", id, "error", err)
		return fail[struct{}](err, s.since(start))
	}
	if !deleted {
		return succeed(struct{}{}, 0, s.since(start))
	}
	s.logger.Info("document deleted", "id", id, "name", doc.Name)
	return succeed(struct{}{}, 1, s.since(start))
}

// ListDocuments returns documents per the query. Index and sort names are
// closed enumerations; unknown values fail validation instead of silently
// falling back to a full scan.
func (s *Service) ListDocuments(q DocumentQuery) Result[[]*model.Document] {
	start := s.clock.Now()
	if err := validateDocumentQuery(q); err != nil {
		return failKind[[]*model.Document](ErrKindValidation, err.Error(), s.since(start))
	}
	st, err := s.connect()
	if err != nil {
		return fail[[]*model.Document](err, s.since(start))
	}
	docs, err := st.ListDocuments(q)
	if err != nil {
		s.logger.Error("document list failed", "error", err)
		return fail[[]*model.Document](err, s.since(start))
	}
	return succeed(docs, int64(len(docs)), s.since(start))
}

// DocumentsByType returns documents whose content type matches exactly,
// via the by-type index.
func (s *Service) DocumentsByType(contentType string, page Page) Result[[]*model.Document] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[[]*model.Document](err, s.since(start))
	}
	docs, err := st.ListDocumentsByType(contentType, page)
	if err != nil {
		s.logger.Error("document list by type failed", "type", contentType, "error", err)
		return fail[[]*model.Document](err, s.since(start))
	}
	return succeed(docs, int64(len(docs)), s.since(start))
}

func validateDocumentQuery(q DocumentQuery) error {
	if q.Index != "" {
		if _, err := ParseDocumentIndex(string(q.Index)); err != nil {
			return err
		}
	}
	if q.SortBy != "" {
		if _, err := ParseDocumentSortField(string(q.SortBy)); err != nil {
			return err
		}
	}
	return validateDirection(q.Direction)
}

func validateDirection(d SortDirection) error {
	switch d {
	case "", Ascending, Descending:
		return nil
	default:
		return fmt.Errorf("unknown sort direction: %s", d)
	}
}
