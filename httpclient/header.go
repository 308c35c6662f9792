package httpclient

import (
	"strconv"
	"strings"
)

// Header is a single name/value pair. Names are matched case-insensitively.
type Header struct {
	Name  string
	Value string
}

// Headers is an immutable ordered list of header pairs. Duplicate names are
// kept in insertion order. The zero value is an empty collection.
type Headers struct {
	list []Header
}

// NewHeaders copies pairs into a new collection.
func NewHeaders(pairs ...Header) Headers {
	if len(pairs) == 0 {
		return Headers{}
	}
	list := make([]Header, len(pairs))
	copy(list, pairs)
	return Headers{list: list}
}

// SingleHeader returns a collection holding one pair.
func SingleHeader(name, value string) Headers {
	return Headers{list: []Header{{Name: name, Value: value}}}
}

// Add returns a copy of h with the pair appended.
func (h Headers) Add(name, value string) Headers {
	list := make([]Header, len(h.list), len(h.list)+1)
	copy(list, h.list)
	return Headers{list: append(list, Header{Name: name, Value: value})}
}

// Get returns the value of the first pair whose name matches.
func (h Headers) Get(name string) (string, bool) {
	for _, p := range h.list {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// Value is Get without the presence flag.
func (h Headers) Value(name string) string {
	v, _ := h.Get(name)
	return v
}

// Values returns every value whose name matches, in order.
func (h Headers) Values(name string) []string {
	var out []string
	for _, p := range h.list {
		if strings.EqualFold(p.Name, name) {
			out = append(out, p.Value)
		}
	}
	return out
}

// Has reports whether any pair matches name.
func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// All returns a copy of the pairs in order.
func (h Headers) All() []Header {
	if len(h.list) == 0 {
		return nil
	}
	out := make([]Header, len(h.list))
	copy(out, h.list)
	return out
}

// Len returns the number of pairs.
func (h Headers) Len() int { return len(h.list) }

// Each calls fn for every pair in order.
func (h Headers) Each(fn func(name, value string)) {
	for _, p := range h.list {
		fn(p.Name, p.Value)
	}
}

// String renders pairs as "[Name: value, ...]".
func (h Headers) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range h.list {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Value)
	}
	b.WriteByte(']')
	return b.String()
}

// HeadersBuilder accumulates pairs for a Headers value.
type HeadersBuilder struct {
	list []Header
}

// NewHeadersBuilder returns an empty builder.
func NewHeadersBuilder() *HeadersBuilder {
	return &HeadersBuilder{}
}

// Add appends a pair.
func (b *HeadersBuilder) Add(name, value string) *HeadersBuilder {
	b.list = append(b.list, Header{Name: name, Value: value})
	return b
}

// AddInt appends a pair with a decimal value.
func (b *HeadersBuilder) AddInt(name string, value int64) *HeadersBuilder {
	return b.Add(name, strconv.FormatInt(value, 10))
}

// AddAll appends every pair of h.
func (b *HeadersBuilder) AddAll(h Headers) *HeadersBuilder {
	b.list = append(b.list, h.list...)
	return b
}

// Build returns the collection. The builder may keep being used.
func (b *HeadersBuilder) Build() Headers {
	return NewHeaders(b.list...)
}
