package httpclient

import (
	"net/url"
	"strings"
)

// ContentTypeForm is the media type produced by FormBody.
const ContentTypeForm = "application/x-www-form-urlencoded"

// FormBody builds an application/x-www-form-urlencoded payload, keeping the
// order in which fields were added.
type FormBody struct {
	fields []Header
}

// NewFormBody returns an empty form.
func NewFormBody() *FormBody {
	return &FormBody{}
}

// Add appends a field.
func (f *FormBody) Add(name, value string) *FormBody {
	f.fields = append(f.fields, Header{Name: name, Value: value})
	return f
}

// Encode returns the encoded form. Spaces are written as %20.
func (f *FormBody) Encode() string {
	parts := make([]string, 0, len(f.fields))
	for _, field := range f.fields {
		parts = append(parts, formEscape(field.Name)+"="+formEscape(field.Value))
	}
	return strings.Join(parts, "&")
}

// Bytes returns the encoded form as UTF-8 bytes.
func (f *FormBody) Bytes() []byte {
	return []byte(f.Encode())
}

// Request builds a POST carrying the form with its Content-Type header.
func (f *FormBody) Request(target string, headers Headers) Request {
	return Request{
		URL:     target,
		Method:  MethodPost,
		Headers: headers.Add("Content-Type", ContentTypeForm),
		Body:    f.Bytes(),
	}
}

func formEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
