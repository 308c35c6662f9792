package httpclient

import (
	"testing"
)

func TestHeaders_GetCaseInsensitive(t *testing.T) {
	h := NewHeaders(Header{Name: "Content-Type", Value: "text/plain"})

	for _, name := range []string{"content-type", "CONTENT-TYPE", "Content-Type"} {
		v, ok := h.Get(name)
		if !ok || v != "text/plain" {
			t.Errorf("Get(%q) = %q, %v; expected text/plain", name, v, ok)
		}
	}
	if _, ok := h.Get("Content-Length"); ok {
		t.Error("expected missing header to be absent")
	}
}

func TestHeaders_DuplicatesKeepOrder(t *testing.T) {
	h := NewHeadersBuilder().
		Add("Set-Cookie", "a=1").
		Add("X-Other", "x").
		Add("set-cookie", "b=2").
		Build()

	if v := h.Value("SET-COOKIE"); v != "a=1" {
		t.Errorf("expected first match a=1, got %q", v)
	}
	values := h.Values("Set-Cookie")
	if len(values) != 2 || values[0] != "a=1" || values[1] != "b=2" {
		t.Errorf("expected [a=1 b=2], got %v", values)
	}
	if h.Len() != 3 {
		t.Errorf("expected 3 pairs, got %d", h.Len())
	}
}

func TestHeaders_AddIsCopyOnWrite(t *testing.T) {
	base := SingleHeader("A", "1")
	a := base.Add("B", "2")
	b := base.Add("C", "3")

	if base.Len() != 1 {
		t.Errorf("expected base untouched, got %d pairs", base.Len())
	}
	if a.Has("C") || b.Has("B") {
		t.Error("expected derived collections to be independent")
	}
}

func TestHeaders_AllReturnsCopy(t *testing.T) {
	h := SingleHeader("A", "1")
	all := h.All()
	all[0].Value = "changed"
	if h.Value("A") != "1" {
		t.Error("expected All to return a copy")
	}

	var empty Headers
	if empty.All() != nil || empty.Len() != 0 {
		t.Error("expected zero value to be empty")
	}
}

func TestHeaders_NewHeadersCopiesInput(t *testing.T) {
	pairs := []Header{{Name: "A", Value: "1"}}
	h := NewHeaders(pairs...)
	pairs[0].Value = "changed"
	if h.Value("A") != "1" {
		t.Error("expected NewHeaders to copy its input")
	}
}

func TestHeadersBuilder_AddInt(t *testing.T) {
	h := NewHeadersBuilder().AddInt("Content-Length", 5).Build()
	if v := h.Value("content-length"); v != "5" {
		t.Errorf("expected 5, got %q", v)
	}
}

func TestHeadersBuilder_AddAll(t *testing.T) {
	h := NewHeadersBuilder().Add("A", "1").AddAll(SingleHeader("B", "2")).Build()
	if h.String() != "[A: 1, B: 2]" {
		t.Errorf("unexpected rendering %q", h.String())
	}
}

func TestHeaders_Each(t *testing.T) {
	h := NewHeadersBuilder().Add("A", "1").Add("B", "2").Build()
	var names []string
	h.Each(func(name, _ string) { names = append(names, name) })
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Errorf("expected [A B], got %v", names)
	}
}
