package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddress_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ana@example.com", Address{Email: "ana@example.com"}.String())
	assert.Equal(t, "Ana <ana@example.com>", Address{Email: "ana@example.com", Name: "Ana"}.String())
	assert.Equal(t, "=?UTF-8?q?Jos=C3=A9?= <jose@example.com>", Address{Email: "jose@example.com", Name: "José"}.String())
	assert.True(t, Address{Name: "nobody"}.IsZero())
}

func TestHeaderSet(t *testing.T) {
	t.Parallel()

	var hs HeaderSet
	hs.Set("X-One", "1")
	hs.Add("X-Two", "a")
	hs.Add("x-two", "b")
	hs.Set("X-Three", "3")
	assert.Equal(t, 4, hs.Len())

	hs.Set("X-TWO", "c")
	assert.Equal(t, []Header{
		{Name: "X-One", Value: "1"},
		{Name: "X-Two", Value: "c"},
		{Name: "X-Three", Value: "3"},
	}, hs.All())

	v, ok := hs.Get("x-three")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	hs.Del("X-ONE")
	_, ok = hs.Get("X-One")
	assert.False(t, ok)
	assert.Equal(t, 2, hs.Len())

	all := hs.All()
	all[0].Value = "changed"
	v, _ = hs.Get("X-Two")
	assert.Equal(t, "c", v)
}

func TestAttachment_DisplayNameAndType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename string
		display  string
		ctype    string
	}{
		{filename: "report.pdf", display: "report.pdf", ctype: "application/pdf"},
		{filename: "=?UTF-8?b?5ZCN5YmNLnBkZg==?=", display: "名前.pdf", ctype: "application/pdf"},
		{filename: "photo.JPG", display: "photo.JPG", ctype: "image/jpeg"},
		{filename: "data", display: "data", ctype: "application/octet-stream"},
	}

	for _, tt := range tests {
		a := &Attachment{Filename: tt.filename}
		assert.Equal(t, tt.display, a.DisplayName(), tt.filename)
		assert.Equal(t, tt.ctype, a.DetectContentType(), tt.filename)
	}

	a := &Attachment{Filename: "x.pdf", ContentType: "application/x-custom"}
	assert.Equal(t, "application/x-custom", a.DetectContentType())
}

func TestEnvelope_Bodies(t *testing.T) {
	t.Parallel()

	html := &Envelope{ContentType: "text/html; charset=UTF-8", Body: "<p>x</p>"}
	assert.Equal(t, "<p>x</p>", html.HTMLBody())
	assert.Empty(t, html.TextBody())

	text := &Envelope{ContentType: "text/plain", Body: "x"}
	assert.Empty(t, text.HTMLBody())
	assert.Equal(t, "x", text.TextBody())
}

func TestPriority(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1 (Highest)", PriorityHighest.HeaderValue())
	assert.Equal(t, "3 (Normal)", PriorityNormal.HeaderValue())
	assert.Equal(t, "5 (Lowest)", PriorityLowest.HeaderValue())
	assert.Equal(t, "3 (Normal)", Priority(9).HeaderValue())
	assert.False(t, Priority(0).Valid())
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := WrapTransportError("smtp", "dial", cause)
	err.StatusCode = 421
	err.IsTemporary = true

	wrapped := fmt.Errorf("sending: %w", err)
	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, NewTransportError("smtp", "dial", ""))
	assert.NotErrorIs(t, wrapped, NewTransportError("smtp", "auth", ""))
	assert.True(t, IsTemporary(wrapped))
	assert.False(t, IsTemporary(cause))
	assert.False(t, IsTemporary(nil))
	assert.Contains(t, err.Error(), "status: 421")
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := NewValidationErrorWithValue("mail.line_length", "must not be negative", -1)
	assert.Equal(t, "validation error in mail.line_length: must not be negative (value: -1)", err.Error())
	assert.ErrorIs(t, fmt.Errorf("config: %w", err), &ValidationError{})
	assert.Equal(t, "validation error in x: y", NewValidationError("x", "y").Error())
}
