package docvault

import "docvault/internal/model"

// AddResult inserts a new processing result. Results are immutable
// historical records: no update or delete is offered. The document
// reference is soft; the referenced document does not need to exist.
// Appends an audit entry with action processing_result_add.
func (s *Service) AddResult(res *model.ProcessingResult) Result[*model.ProcessingResult] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[*model.ProcessingResult](err, s.since(start))
	}
	entry := s.newEntry(ActionResultAdd, ResourceResult, res.ID, map[string]any{
		"documentId":     res.DocumentID,
		"processingType": res.ProcessingType,
		"status":         string(res.Status),
		"confidence":     res.Confidence,
	})
	if err := st.InsertResult(res, entry); err != nil {
		s.logger.Error("processing result add failed", "id", res.ID, "error", err)
		return fail[*model.ProcessingResult](err, s.since(start))
	}
	s.logger.Info("processing result recorded",
		"id", res.ID, "document", res.DocumentID, "type", res.ProcessingType, "status", res.Status)
	return succeed(res, 1, s.since(start))
}

// ResultsByDocument returns the results referencing a document, oldest
// first, via the by-document index. Results for a deleted document are
// still returned; dangling references are permitted.
func (s *Service) ResultsByDocument(documentID string, page Page) Result[[]*model.ProcessingResult] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[[]*model.ProcessingResult](err, s.since(start))
	}
	results, err := st.ListResultsByDocument(documentID, page)
	if err != nil {
		s.logger.Error("processing result list failed", "document", documentID, "error", err)
		return fail[[]*model.ProcessingResult](err, s.since(start))
	}
	return succeed(results, int64(len(results)), s.since(start))
}
