package docvault

import "docvault/internal/model"

// AddTemplate inserts a new template. A duplicate identifier fails without
// mutating state. Appends an audit entry with action template_add.
func (s *Service) AddTemplate(tpl *model.DocumentTemplate) Result[*model.DocumentTemplate] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[*model.DocumentTemplate](err, s.since(start))
	}
	entry := s.newEntry(ActionTemplateAdd, ResourceTemplate, tpl.ID, map[string]any{
		"name":         tpl.Name,
		"documentType": tpl.DocumentType,
		"version":      tpl.Version,
	})
	if err := st.InsertTemplate(tpl, entry); err != nil {
		s.logger.Error("template add failed", "id", tpl.ID, "error", err)
		return fail[*model.DocumentTemplate](err, s.since(start))
	}
	s.logger.Info("template added", "id", tpl.ID, "name", tpl.Name)
	return succeed(tpl, 1, s.since(start))
}

// GetTemplate fetches a template by identifier. Absence is success with
// nil data and zero records affected.
func (s *Service) GetTemplate(id string) Result[*model.DocumentTemplate] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[*model.DocumentTemplate](err, s.since(start))
	}
	tpl, err := st.GetTemplate(id)
	if err != nil {
		s.logger.Error("template get failed", "id", id, "error", err)
		return fail[*model.DocumentTemplate](err, s.since(start))
	}
	if tpl == nil {
		return succeed[*model.DocumentTemplate](nil, 0, s.since(start))
	}
	return succeed(tpl, 1, s.since(start))
}

// UpdateTemplate overwrites the stored template, refreshing ModifiedAt
// from the clock. Version is caller-managed and written as given. Appends
// an audit entry with action template_update.
func (s *Service) UpdateTemplate(tpl *model.DocumentTemplate) Result[*model.DocumentTemplate] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[*model.DocumentTemplate](err, s.since(start))
	}
	tpl.ModifiedAt = s.clock.Now()
	entry := s.newEntry(ActionTemplateUpdate, ResourceTemplate, tpl.ID, map[string]any{
		"name":         tpl.Name,
		"documentType": tpl.DocumentType,
		"version":      tpl.Version,
	})
	if err := st.PutTemplate(tpl, entry); err != nil {
		s.logger.Error("template update failed", "id", tpl.ID, "error", err)
		return fail[*model.DocumentTemplate](err, s.since(start))
	}
	s.logger.Info("template updated", "id", tpl.ID, "version", tpl.Version)
	return succeed(tpl, 1, s.since(start))
}

// Templates returns every template in identifier order.
func (s *Service) Templates(page Page) Result[[]*model.DocumentTemplate] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[[]*model.DocumentTemplate](err, s.since(start))
	}
	all, err := st.ListTemplates()
	if err != nil {
		s.logger.Error("template list failed", "error", err)
		return fail[[]*model.DocumentTemplate](err, s.since(start))
	}
	all = paginate(all, page)
	return succeed(all, int64(len(all)), s.since(start))
}

// ActiveTemplates returns templates whose active flag is set. The store
// returns the full collection and the filter runs here in memory, not
// through the is_active index. Pagination applies after filtering.
func (s *Service) ActiveTemplates(page Page) Result[[]*model.DocumentTemplate] {
	start := s.clock.Now()
	st, err := s.connect()
	if err != nil {
		return fail[[]*model.DocumentTemplate](err, s.since(start))
	}
	all, err := st.ListTemplates()
	if err != nil {
		s.logger.Error("template list failed", "error", err)
		return fail[[]*model.DocumentTemplate](err, s.since(start))
	}
	active := make([]*model.DocumentTemplate, 0, len(all))
	for _, tpl := range all {
		if tpl.IsActive {
			active = append(active, tpl)
		}
	}
	active = paginate(active, page)
	return succeed(active, int64(len(active)), s.since(start))
}

// paginate applies offset and limit to an already-ordered result set. A
// negative offset reads from the start, matching how the store handles a
// negative OFFSET clause.
func paginate[T any](items []T, p Page) []T {
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}
