package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/jusmemoriza/internal/cards"
	"github.com/hitoshi/jusmemoriza/internal/catalog"
	"github.com/hitoshi/jusmemoriza/internal/importer"
	"github.com/hitoshi/jusmemoriza/internal/model"
)

func newTestAdminHandler(cat *mockAdminCatalogService, cs *mockCardService, im *mockImportService, img *mockImageService) *AdminHandler {
	if cat == nil {
		cat = &mockAdminCatalogService{}
	}
	if cs == nil {
		cs = &mockCardService{}
	}
	if im == nil {
		im = &mockImportService{}
	}
	if img == nil {
		img = &mockImageService{}
	}
	return NewAdminHandler(cat, cs, im, img)
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAdminHandler_CreateNode_UsesLevel(t *testing.T) {
	var gotLevel model.Level
	var gotInput catalog.NodeInput
	h := newTestAdminHandler(&mockAdminCatalogService{
		createNodeFn: func(ctx context.Context, level model.Level, in catalog.NodeInput) (*model.TaxonomyNode, error) {
			gotLevel, gotInput = level, in
			return &model.TaxonomyNode{ID: "lei-1", Level: level, ParentID: in.ParentID, Name: in.Name, Status: true}, nil
		},
	}, nil, nil, nil)

	body := `{"parent_id":"` + testComboID + `","name":"Código Penal"}`
	w := httptest.NewRecorder()
	h.CreateNode(model.LevelLei)(w, jsonRequest(http.MethodPost, body))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if gotLevel != model.LevelLei {
		t.Errorf("level = %q, want %q", gotLevel, model.LevelLei)
	}
	if diff := cmp.Diff(catalog.NodeInput{ParentID: testComboID, Name: "Código Penal"}, gotInput); diff != "" {
		t.Errorf("input mismatch (-want +got):\n%s", diff)
	}

	var got nodeResponse
	decodeBody(t, w, &got)
	if got.Level != "lei" || got.Name != "Código Penal" || !got.Status {
		t.Errorf("body = %+v", got)
	}
}

func TestAdminHandler_CreateNode_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed json",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeValidation,
		},
		{
			name:       "duplicate name",
			body:       `{"name":"Direito Civil"}`,
			err:        model.NewDuplicateNameError("Direito Civil"),
			wantStatus: http.StatusConflict,
			wantCode:   model.ErrCodeDuplicateName,
		},
		{
			name:       "missing parent",
			body:       `{"name":"Título I"}`,
			err:        model.NewTaxonomyNotFoundError(model.LevelLei, "x"),
			wantStatus: http.StatusNotFound,
			wantCode:   model.ErrCodeTaxonomyNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestAdminHandler(&mockAdminCatalogService{
				createNodeFn: func(ctx context.Context, level model.Level, in catalog.NodeInput) (*model.TaxonomyNode, error) {
					return nil, tt.err
				},
			}, nil, nil, nil)

			w := httptest.NewRecorder()
			h.CreateNode(model.LevelMateria)(w, jsonRequest(http.MethodPost, tt.body))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeErrorBody(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestAdminHandler_SetNodeStatus(t *testing.T) {
	t.Run("requires status field", func(t *testing.T) {
		called := false
		h := newTestAdminHandler(&mockAdminCatalogService{
			setNodeStatusFn: func(ctx context.Context, level model.Level, id string, status bool) error {
				called = true
				return nil
			},
		}, nil, nil, nil)

		req := withURLParams(jsonRequest(http.MethodPut, `{}`), "id", "n1")
		w := httptest.NewRecorder()
		h.SetNodeStatus(model.LevelArtigo)(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
		body := decodeErrorBody(t, w)
		if len(body.Details) != 1 || body.Details[0].Field != "status" {
			t.Errorf("details = %+v", body.Details)
		}
		if called {
			t.Error("service should not be called")
		}
	})

	t.Run("deactivates", func(t *testing.T) {
		var got *bool
		h := newTestAdminHandler(&mockAdminCatalogService{
			setNodeStatusFn: func(ctx context.Context, level model.Level, id string, status bool) error {
				if level != model.LevelArtigo || id != "n1" {
					t.Errorf("level=%q id=%q", level, id)
				}
				got = &status
				return nil
			},
		}, nil, nil, nil)

		req := withURLParams(jsonRequest(http.MethodPut, `{"status":false}`), "id", "n1")
		w := httptest.NewRecorder()
		h.SetNodeStatus(model.LevelArtigo)(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
		}
		if got == nil || *got {
			t.Errorf("status passed = %v, want false", got)
		}
	})
}

func TestAdminHandler_Combo(t *testing.T) {
	h := newTestAdminHandler(&mockAdminCatalogService{
		replaceComboLeisFn: func(ctx context.Context, id string, in catalog.LeisInput) (*model.Combo, error) {
			return &model.Combo{ID: id, Name: "OAB", Status: true, LeiIDs: in.LeiIDs}, nil
		},
		getComboAdminFn: func(ctx context.Context, id string) (*model.Combo, error) {
			return &model.Combo{ID: id, Name: "OAB", Status: false}, nil
		},
	}, nil, nil, nil)

	t.Run("replace leis", func(t *testing.T) {
		req := withURLParams(jsonRequest(http.MethodPut, `{"lei_ids":["a","b"]}`), "id", testComboID)
		w := httptest.NewRecorder()
		h.ReplaceComboLeis(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var got comboResponse
		decodeBody(t, w, &got)
		if diff := cmp.Diff([]string{"a", "b"}, got.LeiIDs); diff != "" {
			t.Errorf("lei_ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("admin view includes inactive status", func(t *testing.T) {
		req := withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", testComboID)
		w := httptest.NewRecorder()
		h.GetCombo(w, req)

		var got comboResponse
		decodeBody(t, w, &got)
		if got.Status == nil || *got.Status {
			t.Errorf("status = %v, want false", got.Status)
		}
		if got.LeiIDs == nil {
			t.Error("lei_ids should be an empty list, not omitted")
		}
	})
}

func TestAdminHandler_SetComboImage(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		h := newTestAdminHandler(nil, nil, nil, &mockImageService{
			setFromURLFn: func(ctx context.Context, comboID, imageURL string) error {
				return model.NewImageFetchFailedError("content type")
			},
		})

		req := withURLParams(jsonRequest(http.MethodPut, `{"url":"https://example.com/a.svg"}`), "id", testComboID)
		w := httptest.NewRecorder()
		h.SetComboImage(w, req)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		h := newTestAdminHandler(nil, nil, nil, nil)

		req := withURLParams(jsonRequest(http.MethodPut, `{"url":"  "}`), "id", testComboID)
		w := httptest.NewRecorder()
		h.SetComboImage(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("success", func(t *testing.T) {
		var gotURL string
		h := newTestAdminHandler(nil, nil, nil, &mockImageService{
			setFromURLFn: func(ctx context.Context, comboID, imageURL string) error {
				gotURL = imageURL
				return nil
			},
		})

		req := withURLParams(jsonRequest(http.MethodPut, `{"url":"https://example.com/capa.png"}`), "id", testComboID)
		w := httptest.NewRecorder()
		h.SetComboImage(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if gotURL != "https://example.com/capa.png" {
			t.Errorf("url = %q", gotURL)
		}
	})
}

func TestAdminHandler_Quiz(t *testing.T) {
	var gotInput cards.QuizInput
	h := newTestAdminHandler(nil, &mockCardService{
		createQuizFn: func(ctx context.Context, in cards.QuizInput) (*model.Quiz, error) {
			gotInput = in
			return &model.Quiz{ID: "q1", ArtigoID: in.ArtigoID, Statement: in.Statement, Answer: *in.Answer, Status: true}, nil
		},
	}, nil, nil)

	body := `{"artigo_id":"` + testItemID + `","statement":"A CF é rígida.","answer":false}`
	w := httptest.NewRecorder()
	h.CreateQuiz(w, jsonRequest(http.MethodPost, body))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if gotInput.Answer == nil || *gotInput.Answer {
		t.Errorf("answer = %v, want explicit false", gotInput.Answer)
	}
	var got quizResponse
	decodeBody(t, w, &got)
	if got.ID != "q1" || got.Answer {
		t.Errorf("body = %+v", got)
	}
}

func TestAdminHandler_SetCardStatus_PassesKind(t *testing.T) {
	var gotKind model.Kind
	h := newTestAdminHandler(nil, &mockCardService{
		setStatusFn: func(ctx context.Context, kind model.Kind, id string, status bool) error {
			gotKind = kind
			return model.NewItemNotFoundError(id)
		},
	}, nil, nil)

	req := withURLParams(jsonRequest(http.MethodPut, `{"status":true}`), "id", "missing")
	w := httptest.NewRecorder()
	h.SetCardStatus(model.KindQuizzes)(w, req)

	if gotKind != model.KindQuizzes {
		t.Errorf("kind = %q, want quizzes", gotKind)
	}
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

const sampleCSV = "materia,lei,titulo,capitulo,artigo,frente,verso,fundamento\n" +
	"Direito Civil,Código Civil,Título I,Capítulo I,Art. 1,Frente,Verso,\n"

func TestAdminHandler_Import_Multipart(t *testing.T) {
	var gotKind model.Kind
	var gotCSV string
	h := newTestAdminHandler(nil, nil, &mockImportService{
		importFn: func(ctx context.Context, kind model.Kind, r io.Reader) (*importer.Result, error) {
			gotKind = kind
			b, _ := io.ReadAll(r)
			gotCSV = string(b)
			return &importer.Result{Kind: kind, Rows: 1}, nil
		},
	}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "cards.csv")
	part.Write([]byte(sampleCSV))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/import/flashcards", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = withURLParams(req, "kind", "flashcards")
	w := httptest.NewRecorder()
	h.Import(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if gotKind != model.KindFlashcards {
		t.Errorf("kind = %q", gotKind)
	}
	if gotCSV != sampleCSV {
		t.Errorf("csv = %q", gotCSV)
	}

	var got importer.Result
	decodeBody(t, w, &got)
	if got.Rows != 1 {
		t.Errorf("rows = %d, want 1", got.Rows)
	}
}

func TestAdminHandler_Import_RawBodyAndRowErrors(t *testing.T) {
	h := newTestAdminHandler(nil, nil, &mockImportService{
		importFn: func(ctx context.Context, kind model.Kind, r io.Reader) (*importer.Result, error) {
			return nil, model.NewImportFailedError([]model.FieldError{
				{Field: "line:3", Message: "gabarito inválido"},
			})
		},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/import/quizzes", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/csv")
	req = withURLParams(req, "kind", "quizzes")
	w := httptest.NewRecorder()
	h.Import(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeImportFailed {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeImportFailed)
	}
	want := []model.FieldError{{Field: "line:3", Message: "gabarito inválido"}}
	if diff := cmp.Diff(want, body.Details); diff != "" {
		t.Errorf("details mismatch (-want +got):\n%s", diff)
	}
}

func TestAdminHandler_Import_MissingFile(t *testing.T) {
	h := newTestAdminHandler(nil, nil, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = withURLParams(req, "kind", "flashcards")
	w := httptest.NewRecorder()
	h.Import(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
