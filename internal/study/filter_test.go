package study

import (
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

func TestParseFilter_Empty(t *testing.T) {
	filter, page, err := ParseFilter("", url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(model.StudyFilter{}, filter); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}
	if page != 1 {
		t.Errorf("page = %d, want 1", page)
	}
}

func TestParseFilter_NormalizesIDs(t *testing.T) {
	q := url.Values{
		"materiaId": {testItemB, testItemA, testItemB, ""},
		"leiId":     {testItemA},
		"favorite":  {"on"},
		"page":      {"3"},
	}

	filter, page, err := ParseFilter(testCombo, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := model.StudyFilter{
		ComboID:       testCombo,
		MateriaIDs:    []string{testItemA, testItemB},
		LeiIDs:        []string{testItemA},
		OnlyFavorites: true,
	}
	if diff := cmp.Diff(want, filter); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}
	if page != 3 {
		t.Errorf("page = %d, want 3", page)
	}
}

func TestParseFilter_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		q     url.Values
		field string
	}{
		{"bad id", url.Values{"artigoId": {"1; DROP TABLE"}}, "artigoId"},
		{"bad page", url.Values{"page": {"abc"}}, "page"},
		{"zero page", url.Values{"page": {"0"}}, "page"},
		{"page beyond limit", url.Values{"page": {strconv.Itoa(model.MaxDeckPage + 1)}}, "page"},
		{"overflowing page", url.Values{"page": {"9223372036854775807"}}, "page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseFilter("", tt.q)
			apiErr, ok := err.(*model.APIError)
			if !ok {
				t.Fatalf("expected *model.APIError, got %T", err)
			}
			if apiErr.Code != model.ErrCodeValidation {
				t.Errorf("Code = %q", apiErr.Code)
			}
			if len(apiErr.Fields) != 1 || apiErr.Fields[0].Field != tt.field {
				t.Errorf("Fields = %+v, want one error on %s", apiErr.Fields, tt.field)
			}
		})
	}
}

func TestParseFilter_FavoriteOnlyWhenOn(t *testing.T) {
	filter, _, err := ParseFilter("", url.Values{"favorite": {"yes"}})
	if err != nil {
		t.Fatal(err)
	}
	if filter.OnlyFavorites {
		t.Error("OnlyFavorites should be set only for favorite=on")
	}
}

func TestCacheKey_OrderInsensitive(t *testing.T) {
	a, _, _ := ParseFilter(testCombo, url.Values{"leiId": {testItemA, testItemB}})
	b, _, _ := ParseFilter(testCombo, url.Values{"leiId": {testItemB, testItemA}})

	if CacheKey(model.KindFlashcards, model.ModeInitial, a, 1) != CacheKey(model.KindFlashcards, model.ModeInitial, b, 1) {
		t.Error("keys should match regardless of parameter order")
	}
}

func TestCacheKey_DistinguishesScope(t *testing.T) {
	f := model.StudyFilter{ComboID: testCombo}
	base := CacheKey(model.KindFlashcards, model.ModeSabia, f, 1)

	others := []string{
		CacheKey(model.KindQuizzes, model.ModeSabia, f, 1),
		CacheKey(model.KindFlashcards, model.ModeDuvida, f, 1),
		CacheKey(model.KindFlashcards, model.ModeSabia, f, 2),
		CacheKey(model.KindFlashcards, model.ModeSabia, model.StudyFilter{ComboID: testCombo, OnlyFavorites: true}, 1),
		CacheKey(model.KindFlashcards, model.ModeSabia, model.StudyFilter{}, 1),
	}
	for _, k := range others {
		if k == base {
			t.Errorf("key %q should differ from %q", k, base)
		}
	}
}

func TestCacheKey_InitialIgnoresPage(t *testing.T) {
	f := model.StudyFilter{}
	k1 := CacheKey(model.KindFlashcards, model.ModeInitial, f, 1)
	k2 := CacheKey(model.KindFlashcards, model.ModeInitial, f, 5)
	if k1 != k2 {
		t.Errorf("initial keys differ: %q vs %q", k1, k2)
	}
	if strings.Contains(k1, "page") {
		t.Errorf("initial key should not carry page: %q", k1)
	}
}
