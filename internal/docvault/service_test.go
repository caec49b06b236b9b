package docvault_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"docvault/internal/docvault"
	"docvault/internal/model"
	"docvault/internal/testutil"
)

var testActor = docvault.NewActor("alice", "192.0.2.1", "docvault-test")

// newTestService wires a Service to a fresh in-memory store with a ticking
// clock, so consecutive timestamps are strictly increasing.
func newTestService(t *testing.T) *docvault.Service {
	t.Helper()
	st := testutil.NewTestStore(t)
	clock := testutil.NewTickingClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), time.Millisecond)
	return docvault.NewService(testutil.Opener(st), testActor, nil, clock)
}

func newDocument(id string) *model.Document {
	return &model.Document{
		ID:          id,
		Name:        "scan-" + id + ".pdf",
		ContentType: "application/pdf",
		Content:     []byte("ciphertext-" + id),
		Metadata:    model.Metadata{Extension: "pdf", Tags: []string{"inbox"}},
		Size:        512,
		Hash:        "hash-" + id,
		CreatedAt:   time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		ModifiedAt:  time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
	}
}

// lastAudit fetches the newest audit entry.
func lastAudit(t *testing.T, svc *docvault.Service) *model.AuditEntry {
	t.Helper()
	res := svc.AuditEntries(docvault.AuditQuery{Page: docvault.Page{Limit: 1}})
	if !res.OK {
		t.Fatalf("AuditEntries() failed: %s", res.Err)
	}
	if len(res.Data) != 1 {
		t.Fatal("no audit entries recorded")
	}
	return res.Data[0]
}

func auditCount(t *testing.T, svc *docvault.Service) int {
	t.Helper()
	res := svc.AuditEntries(docvault.AuditQuery{})
	if !res.OK {
		t.Fatalf("AuditEntries() failed: %s", res.Err)
	}
	return len(res.Data)
}

func TestService_AddDocument(t *testing.T) {
	t.Run("stores the record exactly as given", func(t *testing.T) {
		svc := newTestService(t)

		doc := newDocument("doc-1")
		res := svc.AddDocument(doc)
		if !res.OK {
			t.Fatalf("AddDocument() failed: %s", res.Err)
		}
		if res.Meta.RecordsAffected != 1 {
			t.Errorf("RecordsAffected = %d, want 1", res.Meta.RecordsAffected)
		}

		got := svc.GetDocument("doc-1")
		if !got.OK {
			t.Fatalf("GetDocument() failed: %s", got.Err)
		}
		if got.Data == nil {
			t.Fatal("GetDocument() returned nil data")
		}
		if got.Data.Name != doc.Name {
			t.Errorf("Name = %q, want %q", got.Data.Name, doc.Name)
		}
		if !got.Data.CreatedAt.Equal(doc.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v (stored as given, not restamped)", got.Data.CreatedAt, doc.CreatedAt)
		}
		if string(got.Data.Content) != string(doc.Content) {
			t.Errorf("Content = %q, want %q", got.Data.Content, doc.Content)
		}
	})

	t.Run("records one audit entry with the document identifier", func(t *testing.T) {
		svc := newTestService(t)

		svc.AddDocument(newDocument("doc-1"))

		if n := auditCount(t, svc); n != 1 {
			t.Fatalf("audit entries = %d, want 1", n)
		}
		entry := lastAudit(t, svc)
		if entry.Action != "document_add" {
			t.Errorf("Action = %q, want document_add", entry.Action)
		}
		if entry.ResourceType != "document" {
			t.Errorf("ResourceType = %q, want document", entry.ResourceType)
		}
		if entry.ResourceID != "doc-1" {
			t.Errorf("ResourceID = %q, want doc-1", entry.ResourceID)
		}
		if entry.UserHash != testActor.UserHash {
			t.Errorf("UserHash = %q, want actor hash %q", entry.UserHash, testActor.UserHash)
		}
		if entry.Result != model.AuditSuccess {
			t.Errorf("Result = %q, want success", entry.Result)
		}
	})

	t.Run("duplicate identifier fails with conflict kind", func(t *testing.T) {
		svc := newTestService(t)

		original := newDocument("doc-1")
		if res := svc.AddDocument(original); !res.OK {
			t.Fatalf("first AddDocument() failed: %s", res.Err)
		}

		dup := newDocument("doc-1")
		dup.Name = "other.pdf"
		res := svc.AddDocument(dup)
		if res.OK {
			t.Fatal("second AddDocument() succeeded, want conflict")
		}
		if res.Kind != docvault.ErrKindConflict {
			t.Errorf("Kind = %q, want conflict", res.Kind)
		}
		if res.Err == "" {
			t.Error("Err is empty, want a message")
		}
		if res.Meta.RecordsAffected != 0 {
			t.Errorf("RecordsAffected = %d, want 0", res.Meta.RecordsAffected)
		}

		// The stored record is unchanged and the failed insert left no
		// audit entry behind.
		got := svc.GetDocument("doc-1")
		if got.Data.Name != original.Name {
			t.Errorf("Name = %q, want %q", got.Data.Name, original.Name)
		}
		if n := auditCount(t, svc); n != 1 {
			t.Errorf("audit entries = %d, want 1", n)
		}
	})
}

func TestService_GetDocument(t *testing.T) {
	t.Run("absence is success with nil data", func(t *testing.T) {
		svc := newTestService(t)

		res := svc.GetDocument("missing")
		if !res.OK {
			t.Fatalf("GetDocument() failed: %s", res.Err)
		}
		if res.Data != nil {
			t.Errorf("Data = %v, want nil", res.Data)
		}
		if res.Meta.RecordsAffected != 0 {
			t.Errorf("RecordsAffected = %d, want 0", res.Meta.RecordsAffected)
		}
		if res.Kind != docvault.ErrKindNone {
			t.Errorf("Kind = %q, want empty", res.Kind)
		}
	})

	t.Run("reads leave no audit trail", func(t *testing.T) {
		svc := newTestService(t)

		svc.AddDocument(newDocument("doc-1"))
		before := auditCount(t, svc)

		svc.GetDocument("doc-1")
		svc.ListDocuments(docvault.DocumentQuery{})
		svc.DocumentsByType("application/pdf", docvault.Page{})

		if after := auditCount(t, svc); after != before {
			t.Errorf("audit entries grew from %d to %d on reads", before, after)
		}
	})
}

func TestService_UpdateDocument(t *testing.T) {
	t.Run("restamps modified time strictly after the stored one", func(t *testing.T) {
		svc := newTestService(t)

		doc := newDocument("doc-1")
		svc.AddDocument(doc)
		stored := svc.GetDocument("doc-1").Data

		update := newDocument("doc-1")
		update.Name = "renamed.pdf"
		// The caller's modified time is ignored.
		update.ModifiedAt = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		res := svc.UpdateDocument(update)
		if !res.OK {
			t.Fatalf("UpdateDocument() failed: %s", res.Err)
		}

		got := svc.GetDocument("doc-1").Data
		if got.Name != "renamed.pdf" {
			t.Errorf("Name = %q, want renamed.pdf", got.Name)
		}
		if !got.ModifiedAt.After(stored.ModifiedAt) {
			t.Errorf("ModifiedAt = %v, want strictly after %v", got.ModifiedAt, stored.ModifiedAt)
		}
	})

	t.Run("records a document_update audit entry", func(t *testing.T) {
		svc := newTestService(t)

		svc.AddDocument(newDocument("doc-1"))
		svc.UpdateDocument(newDocument("doc-1"))

		entry := lastAudit(t, svc)
		if entry.Action != "document_update" {
			t.Errorf("Action = %q, want document_update", entry.Action)
		}
		if entry.ResourceID != "doc-1" {
			t.Errorf("ResourceID = %q, want doc-1", entry.ResourceID)
		}
	})
}

func TestService_DeleteDocument(t *testing.T) {
	t.Run("removes the record", func(t *testing.T) {
		svc := newTestService(t)

		svc.AddDocument(newDocument("doc-1"))
		res := svc.DeleteDocument("doc-1")
		if !res.OK {
			t.Fatalf("DeleteDocument() failed: %s", res.Err)
		}
		if res.Meta.RecordsAffected != 1 {
			t.Errorf("RecordsAffected = %d, want 1", res.Meta.RecordsAffected)
		}

		got := svc.GetDocument("doc-1")
		if got.Data != nil {
			t.Error("document still present after delete")
		}

		entry := lastAudit(t, svc)
		if entry.Action != "document_delete" {
			t.Errorf("Action = %q, want document_delete", entry.Action)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		svc := newTestService(t)

		svc.AddDocument(newDocument("doc-1"))
		svc.DeleteDocument("doc-1")
		before := auditCount(t, svc)

		res := svc.DeleteDocument("doc-1")
		if !res.OK {
			t.Fatalf("second DeleteDocument() failed: %s", res.Err)
		}
		if res.Meta.RecordsAffected != 0 {
			t.Errorf("RecordsAffected = %d, want 0", res.Meta.RecordsAffected)
		}

		// A delete that removed nothing appends no audit entry.
		if after := auditCount(t, svc); after != before {
			t.Errorf("audit entries grew from %d to %d on a no-op delete", before, after)
		}
	})
}

func TestService_ListDocuments(t *testing.T) {
	seed := func(t *testing.T, svc *docvault.Service) {
		t.Helper()
		for _, spec := range []struct {
			id   string
			name string
			size int64
		}{
			{"doc-1", "everest.pdf", 500},
			{"doc-2", "alps.pdf", 300},
			{"doc-3", "denali.pdf", 100},
			{"doc-4", "baker.pdf", 400},
			{"doc-5", "cascade.pdf", 200},
		} {
			doc := newDocument(spec.id)
			doc.Name = spec.name
			doc.Size = spec.size
			if res := svc.AddDocument(doc); !res.OK {
				t.Fatalf("AddDocument(%s) failed: %s", spec.id, res.Err)
			}
		}
	}

	ids := func(docs []*model.Document) []string {
		out := make([]string, len(docs))
		for i, d := range docs {
			out[i] = d.ID
		}
		return out
	}

	t.Run("sorts by name ascending", func(t *testing.T) {
		svc := newTestService(t)
		seed(t, svc)

		res := svc.ListDocuments(docvault.DocumentQuery{SortBy: docvault.SortByName})
		if !res.OK {
			t.Fatalf("ListDocuments() failed: %s", res.Err)
		}
		want := []string{"doc-2", "doc-4", "doc-5", "doc-3", "doc-1"}
		for i, id := range ids(res.Data) {
			if id != want[i] {
				t.Fatalf("order = %v, want %v", ids(res.Data), want)
			}
		}
		if res.Meta.RecordsAffected != 5 {
			t.Errorf("RecordsAffected = %d, want 5", res.Meta.RecordsAffected)
		}
	})

	t.Run("sorts by size descending", func(t *testing.T) {
		svc := newTestService(t)
		seed(t, svc)

		res := svc.ListDocuments(docvault.DocumentQuery{
			SortBy:    docvault.SortBySize,
			Direction: docvault.Descending,
		})
		if !res.OK {
			t.Fatalf("ListDocuments() failed: %s", res.Err)
		}
		want := []string{"doc-1", "doc-4", "doc-2", "doc-5", "doc-3"}
		for i, id := range ids(res.Data) {
			if id != want[i] {
				t.Fatalf("order = %v, want %v", ids(res.Data), want)
			}
		}
	})

	t.Run("limit and offset page the sorted set", func(t *testing.T) {
		svc := newTestService(t)
		seed(t, svc)

		res := svc.ListDocuments(docvault.DocumentQuery{
			SortBy: docvault.SortByName,
			Page:   docvault.Page{Limit: 2, Offset: 2},
		})
		if !res.OK {
			t.Fatalf("ListDocuments() failed: %s", res.Err)
		}
		got := ids(res.Data)
		if len(got) != 2 || got[0] != "doc-5" || got[1] != "doc-3" {
			t.Errorf("page = %v, want [doc-5 doc-3]", got)
		}
	})

	t.Run("unknown index fails validation", func(t *testing.T) {
		svc := newTestService(t)

		res := svc.ListDocuments(docvault.DocumentQuery{Index: "bogus"})
		if res.OK {
			t.Fatal("ListDocuments() succeeded, want validation failure")
		}
		if res.Kind != docvault.ErrKindValidation {
			t.Errorf("Kind = %q, want validation", res.Kind)
		}
	})

	t.Run("unknown sort field fails validation", func(t *testing.T) {
		svc := newTestService(t)

		res := svc.ListDocuments(docvault.DocumentQuery{SortBy: "bogus"})
		if res.OK {
			t.Fatal("ListDocuments() succeeded, want validation failure")
		}
		if res.Kind != docvault.ErrKindValidation {
			t.Errorf("Kind = %q, want validation", res.Kind)
		}
	})

	t.Run("unknown direction fails validation", func(t *testing.T) {
		svc := newTestService(t)

		res := svc.ListDocuments(docvault.DocumentQuery{Direction: "sideways"})
		if res.OK {
			t.Fatal("ListDocuments() succeeded, want validation failure")
		}
		if res.Kind != docvault.ErrKindValidation {
			t.Errorf("Kind = %q, want validation", res.Kind)
		}
	})
}

func TestService_DocumentsByType(t *testing.T) {
	svc := newTestService(t)

	pdf := newDocument("doc-1")
	png := newDocument("doc-2")
	png.ContentType = "image/png"
	svc.AddDocument(pdf)
	svc.AddDocument(png)

	res := svc.DocumentsByType("image/png", docvault.Page{})
	if !res.OK {
		t.Fatalf("DocumentsByType() failed: %s", res.Err)
	}
	if len(res.Data) != 1 || res.Data[0].ID != "doc-2" {
		t.Errorf("got %d documents, want only doc-2", len(res.Data))
	}

	// No match is success with an empty set.
	res = svc.DocumentsByType("image/jpeg", docvault.Page{})
	if !res.OK {
		t.Fatalf("DocumentsByType() failed: %s", res.Err)
	}
	if len(res.Data) != 0 {
		t.Errorf("got %d documents, want 0", len(res.Data))
	}
}

func TestService_Results(t *testing.T) {
	newResult := func(id string) *model.ProcessingResult {
		return &model.ProcessingResult{
			ID:             id,
			DocumentID:     "doc-1",
			ProcessingType: model.ProcessingClassification,
			Data:           &model.ClassificationData{Category: "invoice", Confidence: 0.8},
			Confidence:     0.8,
			Status:         model.StatusSuccess,
			CreatedAt:      time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		}
	}

	t.Run("add and list by document", func(t *testing.T) {
		svc := newTestService(t)

		res := svc.AddResult(newResult("res-1"))
		if !res.OK {
			t.Fatalf("AddResult() failed: %s", res.Err)
		}

		listed := svc.ResultsByDocument("doc-1", docvault.Page{})
		if !listed.OK {
			t.Fatalf("ResultsByDocument() failed: %s", listed.Err)
		}
		if len(listed.Data) != 1 {
			t.Fatalf("got %d results, want 1", len(listed.Data))
		}
		data, ok := listed.Data[0].Data.(*model.ClassificationData)
		if !ok {
			t.Fatalf("Data is %T, want *model.ClassificationData", listed.Data[0].Data)
		}
		if data.Category != "invoice" {
			t.Errorf("Category = %q, want invoice", data.Category)
		}

		entry := lastAudit(t, svc)
		if entry.Action != "processing_result_add" {
			t.Errorf("Action = %q, want processing_result_add", entry.Action)
		}
		if entry.ResourceID != "res-1" {
			t.Errorf("ResourceID = %q, want res-1", entry.ResourceID)
		}
	})

	t.Run("results survive document deletion", func(t *testing.T) {
		svc := newTestService(t)

		svc.AddDocument(newDocument("doc-1"))
		svc.AddResult(newResult("res-1"))
		svc.DeleteDocument("doc-1")

		listed := svc.ResultsByDocument("doc-1", docvault.Page{})
		if !listed.OK {
			t.Fatalf("ResultsByDocument() failed: %s", listed.Err)
		}
		if len(listed.Data) != 1 {
			t.Errorf("got %d results after document deletion, want 1", len(listed.Data))
		}
	})

	t.Run("duplicate identifier fails with conflict kind", func(t *testing.T) {
		svc := newTestService(t)

		svc.AddResult(newResult("res-1"))
		res := svc.AddResult(newResult("res-1"))
		if res.OK {
			t.Fatal("second AddResult() succeeded, want conflict")
		}
		if res.Kind != docvault.ErrKindConflict {
			t.Errorf("Kind = %q, want conflict", res.Kind)
		}
	})
}

func TestService_Templates(t *testing.T) {
	newTemplate := func(id string, active bool) *model.DocumentTemplate {
		return &model.DocumentTemplate{
			ID:           id,
			Name:         "tpl-" + id,
			DocumentType: "invoice",
			Config: model.TemplateConfig{
				Rules: []model.ProcessingRule{{Type: model.ProcessingOCR, Order: 1}},
			},
			IsActive:   active,
			Version:    1,
			CreatedAt:  time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
			ModifiedAt: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		}
	}

	t.Run("add get update round-trip", func(t *testing.T) {
		svc := newTestService(t)

		tpl := newTemplate("tpl-1", true)
		if res := svc.AddTemplate(tpl); !res.OK {
			t.Fatalf("AddTemplate() failed: %s", res.Err)
		}

		got := svc.GetTemplate("tpl-1")
		if !got.OK || got.Data == nil {
			t.Fatalf("GetTemplate() failed: %s", got.Err)
		}

		update := got.Data
		update.IsActive = false
		update.Version = 2
		if res := svc.UpdateTemplate(update); !res.OK {
			t.Fatalf("UpdateTemplate() failed: %s", res.Err)
		}

		stored := svc.GetTemplate("tpl-1").Data
		if stored.IsActive {
			t.Error("IsActive = true, want false after update")
		}
		if stored.Version != 2 {
			t.Errorf("Version = %d, want 2 (caller-managed, not auto-incremented)", stored.Version)
		}
		if !stored.ModifiedAt.After(tpl.CreatedAt) {
			t.Errorf("ModifiedAt = %v, want after %v", stored.ModifiedAt, tpl.CreatedAt)
		}

		entry := lastAudit(t, svc)
		if entry.Action != "template_update" {
			t.Errorf("Action = %q, want template_update", entry.Action)
		}
	})

	t.Run("missing template is success with nil data", func(t *testing.T) {
		svc := newTestService(t)

		res := svc.GetTemplate("missing")
		if !res.OK {
			t.Fatalf("GetTemplate() failed: %s", res.Err)
		}
		if res.Data != nil {
			t.Errorf("Data = %v, want nil", res.Data)
		}
	})

	t.Run("active filter excludes inactive templates", func(t *testing.T) {
		svc := newTestService(t)

		svc.AddTemplate(newTemplate("tpl-1", true))
		svc.AddTemplate(newTemplate("tpl-2", false))
		svc.AddTemplate(newTemplate("tpl-3", true))

		res := svc.ActiveTemplates(docvault.Page{})
		if !res.OK {
			t.Fatalf("ActiveTemplates() failed: %s", res.Err)
		}
		if len(res.Data) != 2 {
			t.Fatalf("got %d active templates, want 2", len(res.Data))
		}
		for _, tpl := range res.Data {
			if !tpl.IsActive {
				t.Errorf("template %s is inactive", tpl.ID)
			}
		}

		all := svc.Templates(docvault.Page{})
		if !all.OK {
			t.Fatalf("Templates() failed: %s", all.Err)
		}
		if len(all.Data) != 3 {
			t.Errorf("got %d templates, want 3", len(all.Data))
		}
	})

	t.Run("pagination applies after the active filter", func(t *testing.T) {
		svc := newTestService(t)

		svc.AddTemplate(newTemplate("tpl-1", true))
		svc.AddTemplate(newTemplate("tpl-2", false))
		svc.AddTemplate(newTemplate("tpl-3", true))
		svc.AddTemplate(newTemplate("tpl-4", true))

		res := svc.ActiveTemplates(docvault.Page{Limit: 2, Offset: 1})
		if !res.OK {
			t.Fatalf("ActiveTemplates() failed: %s", res.Err)
		}
		if len(res.Data) != 2 {
			t.Fatalf("got %d templates, want 2", len(res.Data))
		}
		if res.Data[0].ID != "tpl-3" || res.Data[1].ID != "tpl-4" {
			t.Errorf("page = [%s %s], want [tpl-3 tpl-4]", res.Data[0].ID, res.Data[1].ID)
		}
	})

	t.Run("negative offset reads from the start", func(t *testing.T) {
		svc := newTestService(t)

		svc.AddTemplate(newTemplate("tpl-1", true))
		svc.AddTemplate(newTemplate("tpl-2", true))

		res := svc.ActiveTemplates(docvault.Page{Offset: -1})
		if !res.OK {
			t.Fatalf("ActiveTemplates() failed: %s", res.Err)
		}
		if len(res.Data) != 2 {
			t.Fatalf("got %d templates, want 2", len(res.Data))
		}
		if res.Data[0].ID != "tpl-1" {
			t.Errorf("Data[0].ID = %q, want tpl-1", res.Data[0].ID)
		}

		all := svc.Templates(docvault.Page{Offset: -5, Limit: 1})
		if !all.OK {
			t.Fatalf("Templates() failed: %s", all.Err)
		}
		if len(all.Data) != 1 || all.Data[0].ID != "tpl-1" {
			t.Errorf("page = %v, want [tpl-1]", all.Data)
		}
	})
}

func TestService_AppendAudit(t *testing.T) {
	t.Run("fills actor fields and stamps the time", func(t *testing.T) {
		svc := newTestService(t)

		entry := &model.AuditEntry{
			Action:       "export",
			ResourceType: "snapshot",
		}
		res := svc.AppendAudit(entry)
		if !res.OK {
			t.Fatalf("AppendAudit() failed: %s", res.Err)
		}
		if res.Data.ID == 0 {
			t.Error("entry ID was not assigned")
		}
		if res.Data.UserHash != testActor.UserHash {
			t.Errorf("UserHash = %q, want actor hash", res.Data.UserHash)
		}
		if res.Data.CreatedAt.IsZero() {
			t.Error("CreatedAt was not stamped")
		}
		if res.Data.Result != model.AuditSuccess {
			t.Errorf("Result = %q, want success default", res.Data.Result)
		}
	})

	t.Run("caller-set fields win over actor defaults", func(t *testing.T) {
		svc := newTestService(t)

		entry := &model.AuditEntry{
			Action:       "export",
			ResourceType: "snapshot",
			UserHash:     "someone-else",
			Result:       model.AuditFailed,
			Error:        "disk full",
		}
		res := svc.AppendAudit(entry)
		if !res.OK {
			t.Fatalf("AppendAudit() failed: %s", res.Err)
		}
		if res.Data.UserHash != "someone-else" {
			t.Errorf("UserHash = %q, want someone-else", res.Data.UserHash)
		}
		if res.Data.Result != model.AuditFailed {
			t.Errorf("Result = %q, want failed", res.Data.Result)
		}
	})
}

func TestService_AuditEntries(t *testing.T) {
	t.Run("orders newest first regardless of the named index", func(t *testing.T) {
		svc := newTestService(t)

		svc.AddDocument(newDocument("doc-1"))
		svc.AddDocument(newDocument("doc-2"))
		svc.DeleteDocument("doc-1")

		for _, index := range []docvault.AuditIndex{"", docvault.AuditByUser, docvault.AuditByAction} {
			res := svc.AuditEntries(docvault.AuditQuery{Index: index})
			if !res.OK {
				t.Fatalf("AuditEntries(index=%q) failed: %s", index, res.Err)
			}
			if len(res.Data) != 3 {
				t.Fatalf("got %d entries, want 3", len(res.Data))
			}
			if res.Data[0].Action != "document_delete" {
				t.Errorf("newest action = %q, want document_delete", res.Data[0].Action)
			}
			for i := 1; i < len(res.Data); i++ {
				if res.Data[i].CreatedAt.After(res.Data[i-1].CreatedAt) {
					t.Errorf("entries[%d] is newer than entries[%d]", i, i-1)
				}
			}
		}
	})

	t.Run("unknown index fails validation", func(t *testing.T) {
		svc := newTestService(t)

		res := svc.AuditEntries(docvault.AuditQuery{Index: "bogus"})
		if res.OK {
			t.Fatal("AuditEntries() succeeded, want validation failure")
		}
		if res.Kind != docvault.ErrKindValidation {
			t.Errorf("Kind = %q, want validation", res.Kind)
		}
	})
}

func TestService_Stats(t *testing.T) {
	svc := newTestService(t)

	svc.AddDocument(newDocument("doc-1"))
	doc2 := newDocument("doc-2")
	doc2.Size = 1000
	svc.AddDocument(doc2)
	svc.AddResult(&model.ProcessingResult{
		ID: "res-1", DocumentID: "doc-1", ProcessingType: "ocr",
		Status: model.StatusSuccess, CreatedAt: time.Now().UTC(),
	})

	res := svc.Stats()
	if !res.OK {
		t.Fatalf("Stats() failed: %s", res.Err)
	}
	stats := res.Data
	if stats.Documents != 2 {
		t.Errorf("Documents = %d, want 2", stats.Documents)
	}
	if stats.Results != 1 {
		t.Errorf("Results = %d, want 1", stats.Results)
	}
	if stats.Templates != 0 {
		t.Errorf("Templates = %d, want 0", stats.Templates)
	}
	// Two document adds and one result add.
	if stats.AuditEntries != 3 {
		t.Errorf("AuditEntries = %d, want 3", stats.AuditEntries)
	}
	if stats.TotalSize != 1512 {
		t.Errorf("TotalSize = %d, want 1512", stats.TotalSize)
	}
	if stats.SchemaVersion == 0 {
		t.Error("SchemaVersion = 0, want applied version")
	}
	if stats.AsOf.IsZero() {
		t.Error("AsOf was not stamped")
	}
}

func TestService_ClearAll(t *testing.T) {
	svc := newTestService(t)

	svc.AddDocument(newDocument("doc-1"))
	svc.AddTemplate(&model.DocumentTemplate{
		ID: "tpl-1", Name: "t", DocumentType: "invoice",
		IsActive: true, Version: 1,
		CreatedAt: time.Now().UTC(), ModifiedAt: time.Now().UTC(),
	})

	res := svc.ClearAll()
	if !res.OK {
		t.Fatalf("ClearAll() failed: %s", res.Err)
	}
	// One document, one template, two audit entries.
	if res.Meta.RecordsAffected != 4 {
		t.Errorf("RecordsAffected = %d, want 4", res.Meta.RecordsAffected)
	}

	stats := svc.Stats().Data
	if stats.Documents != 0 || stats.Results != 0 || stats.Templates != 0 || stats.AuditEntries != 0 {
		t.Errorf("collections not empty after ClearAll: %+v", stats)
	}

	// The service keeps working after a clear.
	if res := svc.AddDocument(newDocument("doc-1")); !res.OK {
		t.Errorf("AddDocument() after ClearAll failed: %s", res.Err)
	}
}

func TestService_Close(t *testing.T) {
	t.Run("operations after close fail with closed kind", func(t *testing.T) {
		st := testutil.NewTestStore(t)
		svc := docvault.NewService(testutil.Opener(st), testActor, nil, nil)

		svc.AddDocument(newDocument("doc-1"))
		if err := svc.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		res := svc.GetDocument("doc-1")
		if res.OK {
			t.Fatal("GetDocument() succeeded after Close")
		}
		if res.Kind != docvault.ErrKindClosed {
			t.Errorf("Kind = %q, want closed", res.Kind)
		}

		add := svc.AddDocument(newDocument("doc-2"))
		if add.OK {
			t.Fatal("AddDocument() succeeded after Close")
		}
		if add.Kind != docvault.ErrKindClosed {
			t.Errorf("Kind = %q, want closed", add.Kind)
		}
	})

	t.Run("close before first use is fine", func(t *testing.T) {
		svc := docvault.NewService(func() (docvault.Store, error) {
			t.Fatal("opener must not run for a service that was never used")
			return nil, nil
		}, testActor, nil, nil)

		if err := svc.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
}

func TestService_LazyOpen(t *testing.T) {
	t.Run("open failure carries environment kind and is not retried", func(t *testing.T) {
		var calls int
		svc := docvault.NewService(func() (docvault.Store, error) {
			calls++
			return nil, fmt.Errorf("%w: disk gone", docvault.ErrEnvironment)
		}, testActor, nil, nil)

		first := svc.GetDocument("doc-1")
		if first.OK {
			t.Fatal("GetDocument() succeeded with failing opener")
		}
		if first.Kind != docvault.ErrKindEnvironment {
			t.Errorf("Kind = %q, want environment", first.Kind)
		}

		second := svc.Stats()
		if second.OK {
			t.Fatal("Stats() succeeded with failing opener")
		}
		if second.Kind != docvault.ErrKindEnvironment {
			t.Errorf("Kind = %q, want environment", second.Kind)
		}

		if calls != 1 {
			t.Errorf("opener ran %d times, want 1 (failures are remembered)", calls)
		}
	})

	t.Run("concurrent first calls share one open", func(t *testing.T) {
		st := testutil.NewTestStore(t)
		var calls int
		svc := docvault.NewService(func() (docvault.Store, error) {
			calls++
			return st, nil
		}, testActor, nil, nil)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if res := svc.Stats(); !res.OK {
					t.Errorf("Stats() failed: %s", res.Err)
				}
			}()
		}
		wg.Wait()

		if calls != 1 {
			t.Errorf("opener ran %d times, want 1", calls)
		}
	})
}

func TestService_Durations(t *testing.T) {
	svc := newTestService(t)

	// The ticking clock advances on every read, so the measured duration
	// is always positive.
	res := svc.AddDocument(newDocument("doc-1"))
	if res.Meta.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", res.Meta.Duration)
	}

	failure := svc.AddDocument(newDocument("doc-1"))
	if failure.OK {
		t.Fatal("duplicate add succeeded")
	}
	if failure.Meta.Duration <= 0 {
		t.Errorf("failure Duration = %v, want > 0", failure.Meta.Duration)
	}
}

func TestNewActor(t *testing.T) {
	actor := docvault.NewActor("alice", "192.0.2.1", "cli")

	if actor.UserHash == "alice" || actor.UserHash == "" {
		t.Errorf("UserHash = %q, want hashed value", actor.UserHash)
	}
	if len(actor.UserHash) != 64 {
		t.Errorf("UserHash length = %d, want 64 hex chars", len(actor.UserHash))
	}
	if actor.IPHash == "192.0.2.1" || actor.IPHash == "" {
		t.Errorf("IPHash = %q, want hashed value", actor.IPHash)
	}
	if actor.UserAgent != "cli" {
		t.Errorf("UserAgent = %q, want cli (not hashed)", actor.UserAgent)
	}

	// Empty inputs stay empty.
	anon := docvault.NewActor("", "", "")
	if anon.UserHash != "" || anon.IPHash != "" {
		t.Errorf("empty identity produced hashes: %+v", anon)
	}

	// Hashing is stable.
	again := docvault.NewActor("alice", "192.0.2.1", "cli")
	if again.UserHash != actor.UserHash {
		t.Error("same user hashed to different values")
	}
}

func TestService_ErrorKinds(t *testing.T) {
	// Raw sentinel errors map onto the closed kind set.
	st := testutil.NewTestStore(t)
	svc := docvault.NewService(testutil.Opener(st), testActor, nil, nil)
	t.Cleanup(func() { svc.Close() })

	svc.AddDocument(newDocument("doc-1"))

	conflict := svc.AddDocument(newDocument("doc-1"))
	if conflict.Kind != docvault.ErrKindConflict {
		t.Errorf("duplicate add Kind = %q, want conflict", conflict.Kind)
	}

	validation := svc.ListDocuments(docvault.DocumentQuery{Index: "bogus"})
	if validation.Kind != docvault.ErrKindValidation {
		t.Errorf("bad query Kind = %q, want validation", validation.Kind)
	}
}
