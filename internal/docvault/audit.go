package docvault

import (
	"crypto/sha256"
	"encoding/hex"

	"docvault/internal/model"
)

// Audit action tags recorded by the service's own mutating operations.
const (
	ActionDocumentAdd    = "document_add"
	ActionDocumentUpdate = "document_update"
	ActionDocumentDelete = "document_delete"
	ActionResultAdd      = "processing_result_add"
	ActionTemplateAdd    = "template_add"
	ActionTemplateUpdate = "template_update"
)

// Audit resource type tags.
const (
	ResourceDocument = "document"
	ResourceResult   = "processing_result"
	ResourceTemplate = "template"
)

// Actor identifies who performs operations, in privacy-preserving hashed
// form. The zero value is an anonymous actor.
type Actor struct {
	UserHash  string
	IPHash    string
	UserAgent string
}

// NewActor hashes raw identity values with SHA-256. Empty inputs stay
// empty so optional fields remain optional.
func NewActor(user, ip, userAgent string) Actor {
	return Actor{
		UserHash:  hashIdentity(user),
		IPHash:    hashIdentity(ip),
		UserAgent: userAgent,
	}
}

func hashIdentity(v string) string {
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// newEntry builds the audit entry for one of the service's own mutating
// operations, stamped with the current time and the service actor.
func (s *Service) newEntry(action, resourceType, resourceID string, details map[string]any) *model.AuditEntry {
	return &model.AuditEntry{
		CreatedAt:    s.clock.Now(),
		UserHash:     s.actor.UserHash,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPHash:       s.actor.IPHash,
		UserAgent:    s.actor.UserAgent,
		Result:       model.AuditSuccess,
	}
}

// AppendAudit inserts an audit entry directly. The store assigns the entry
// identifier; the service stamps the timestamp and fills actor fields that
// the caller left empty. Direct appends never trigger a nested audit entry.
func (s *Service) AppendAudit(entry *model.AuditEntry) Result[*model.AuditEntry] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[*model.AuditEntry](err, s.since(start))
	}
	entry.CreatedAt = s.clock.Now()
	if entry.UserHash == "" {
		entry.UserHash = s.actor.UserHash
	}
	if entry.IPHash == "" {
		entry.IPHash = s.actor.IPHash
	}
	if entry.UserAgent == "" {
		entry.UserAgent = s.actor.UserAgent
	}
	if entry.Result == "" {
		entry.Result = model.AuditSuccess
	}
	if err := st.AppendAudit(entry); err != nil {
		s.logger.Error("audit append failed", "action", entry.Action, "error", err)
		return fail[*model.AuditEntry](err, s.since(start))
	}
	return succeed(entry, 1, s.since(start))
}

// AuditEntries lists audit entries, always ordered by timestamp descending
// with ties broken newest identifier first, whatever index the query names.
func (s *Service) AuditEntries(q AuditQuery) Result[[]*model.AuditEntry] {
	start := s.clock.Now()
	if q.Index != "" {
		if _, err := ParseAuditIndex(string(q.Index)); err != nil {
			return failKind[[]*model.AuditEntry](ErrKindValidation, err.Error(), s.since(start))
		}
	}
	st, err := s.connect()
	if err != nil {
		return fail[[]*model.AuditEntry](err, s.since(start))
	}
	entries, err := st.ListAudit(q)
	if err != nil {
		s.logger.Error("audit list failed", "error", err)
		return fail[[]*model.AuditEntry](err, s.since(start))
	}
	return succeed(entries, int64(len(entries)), s.since(start))
}
