package model

import "time"

// Document represents a stored file record. Content holds ciphertext;
// plaintext never reaches the persistence layer.
type Document struct {
	ID          string    `json:"id"`   // Caller-generated (UUID), immutable
	Name        string    `json:"name"` // Display name
	ContentType string    `json:"contentType"`
	Content     []byte    `json:"-"` // Encrypted payload
	Metadata    Metadata  `json:"metadata"`
	Size        int64     `json:"size"` // Original (pre-encryption) size in bytes
	Hash        string    `json:"hash,omitempty"` // Integrity hash of the original content
	CreatedAt   time.Time `json:"createdAt"`
	ModifiedAt  time.Time `json:"modifiedAt"`
}

// Metadata carries optional descriptive attributes of a document.
type Metadata struct {
	Extension string            `json:"extension,omitempty"`
	PageCount int               `json:"pageCount,omitempty"`
	Width     int               `json:"width,omitempty"`
	Height    int               `json:"height,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Custom    map[string]string `json:"custom,omitempty"`
	Crypto    *CryptoParams     `json:"crypto,omitempty"`
}

// CryptoParams records the non-secret encryption parameters needed to
// decrypt a document's content, base64-encoded.
type CryptoParams struct {
	Salt string `json:"salt"`
	IV   string `json:"iv"`
}

// DocumentTemplate is a reusable configuration describing how to process
// a class of documents.
type DocumentTemplate struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	DocumentType string         `json:"documentType"`
	Config       TemplateConfig `json:"config"`
	IsActive     bool           `json:"isActive"`
	Version      int            `json:"version"` // Caller-managed, no auto-increment
	CreatedAt    time.Time      `json:"createdAt"`
	ModifiedAt   time.Time      `json:"modifiedAt"`
}

// TemplateConfig holds the processing rules a template applies.
type TemplateConfig struct {
	Rules      []ProcessingRule `json:"rules"`
	Fields     []FieldRule      `json:"fields,omitempty"`
	Validation []ValidationRule `json:"validation,omitempty"`
	Output     *OutputFormat    `json:"output,omitempty"`
}

// ProcessingRule is one step in a template's processing sequence.
type ProcessingRule struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
	Order  int            `json:"order"`
}

// FieldRule describes one field to extract from recognized text.
type FieldRule struct {
	Name      string    `json:"name"`
	Pattern   string    `json:"pattern"` // Regular expression
	ValueType ValueType `json:"valueType"`
	Required  bool      `json:"required"`
}

// ValueType is the expected type of an extracted field value.
type ValueType string

const (
	ValueString  ValueType = "string"
	ValueNumber  ValueType = "number"
	ValueDate    ValueType = "date"
	ValueBoolean ValueType = "boolean"
)

// ValidationRule constrains an extracted field value.
type ValidationRule struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message,omitempty"`
}

// OutputFormat describes how processed results should be rendered.
type OutputFormat struct {
	Type    string            `json:"type"`
	Options map[string]string `json:"options,omitempty"`
}

// AuditEntry is an immutable record of one administrative action.
// The ID is assigned by the store on insert, never by the caller.
type AuditEntry struct {
	ID           int64          `json:"id"`
	CreatedAt    time.Time      `json:"timestamp"`
	UserHash     string         `json:"userHash"` // Hashed identity, never raw
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPHash       string         `json:"ipHash,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	Result       AuditResult    `json:"result"`
	Error        string         `json:"error,omitempty"`
}

// AuditResult is the outcome recorded on an audit entry.
type AuditResult string

const (
	AuditSuccess AuditResult = "success"
	AuditFailed  AuditResult = "failed"
	AuditPending AuditResult = "pending"
)
