package docvault

import "time"

// Stats reports live cross-collection counts and totals. Values are always
// recomputed from the collections; nothing is cached.
type Stats struct {
	Documents     int64     `json:"documents"`
	Results       int64     `json:"processingResults"`
	Templates     int64     `json:"templates"`
	AuditEntries  int64     `json:"auditLogs"`
	TotalSize     int64     `json:"totalSize"` // Sum of original document sizes in bytes
	SchemaVersion uint      `json:"schemaVersion"`
	AsOf          time.Time `json:"asOf"`
}

// Stats computes counts for all four collections, the total original byte
// size across documents, the schema version and a fresh as-of timestamp.
func (s *Service) Stats() Result[*Stats] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[*Stats](err, s.since(start))
	}

	out := &Stats{}
	if out.Documents, err = st.CountDocuments(); err != nil {
		s.logger.Error("stats query failed", "collection", "documents", "error", err)
		return fail[*Stats](err, s.since(start))
	}
	if out.Results, err = st.CountResults(); err != nil {
		s.logger.Error("stats query failed", "collection", "processing_results", "error", err)
		return fail[*Stats](err, s.since(start))
	}
	if out.Templates, err = st.CountTemplates(); err != nil {
		s.logger.Error("stats query failed", "collection", "templates", "error", err)
		return fail[*Stats](err, s.since(start))
	}
	if out.AuditEntries, err = st.CountAuditEntries(); err != nil {
		s.logger.Error("stats query failed", "collection", "audit_logs", "error", err)
		return fail[*Stats](err, s.since(start))
	}
	if out.TotalSize, err = st.SumDocumentSizes(); err != nil {
		s.logger.Error("stats size sum failed", "error", err)
		return fail[*Stats](err, s.since(start))
	}
	if out.SchemaVersion, err = st.SchemaVersion(); err != nil {
		s.logger.Error("stats schema version failed", "error", err)
		return fail[*Stats](err, s.since(start))
	}
	out.AsOf = s.clock.Now()

	affected := out.Documents + out.Results + out.Templates + out.AuditEntries
	return succeed(out, affected, s.since(start))
}

// ClearAll unconditionally empties all four collections. Intended for test
// and reset scenarios. Emits no audit entries, since the audit collection
// itself is being cleared.
func (s *Service) ClearAll() Result[struct{}] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[struct{}](err, s.since(start))
	}
	removed, err := st.ClearAll()
	if err != nil {
		s.logger.Error("clear all failed", "error", err)
		return fail[struct{}](err, s.since(start))
	}
	s.logger.Warn("all collections cleared", "removed", removed)
	return succeed(struct{}{}, removed, s.since(start))
}
