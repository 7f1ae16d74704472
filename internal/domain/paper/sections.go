package paper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Section is one logical section of a paper's full text.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Sections is the canonical ordered form of a paper's sections.
//
// It decodes from a JSON object (title -> content, key order preserved), a JSON
// array of {title|heading, content|text} records or bare strings, or a JSON
// string holding either shape. Unusable input decodes to no sections.
type Sections []Section

// UnmarshalJSON implements json.Unmarshaler. It never fails: malformed section
// data leaves the paper without sections so chunking falls back to full text.
func (s *Sections) UnmarshalJSON(data []byte) error {
	parsed, err := ParseSectionsJSON(data)
	if err != nil {
		*s = nil
		return nil
	}
	*s = parsed
	return nil
}

// ErrMalformedSections signals section data that is neither a mapping nor a list.
var ErrMalformedSections = errors.New("malformed sections")

// ParseSectionsJSON decodes section data in any of the accepted JSON shapes.
func ParseSectionsJSON(data []byte) (Sections, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '{':
		return parseObject(data)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode section list: %w", err)
		}
		return fromRawList(items), nil
	case '"':
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("decode section string: %w", err)
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return nil, nil
		}
		if inner[0] != '{' && inner[0] != '[' {
			return nil, ErrMalformedSections
		}
		return ParseSectionsJSON([]byte(inner))
	default:
		return nil, ErrMalformedSections
	}
}

// parseObject walks the object token by token so section order survives decoding.
func parseObject(data []byte) (Sections, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode section object: %w", err)
	}

	b := newBuilder()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode section title: %w", err)
		}
		title, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode section %q: %w", title, err)
		}
		b.add(title, rawString(raw))
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode section object: %w", err)
	}
	return b.sections(), nil
}

func fromRawList(items []json.RawMessage) Sections {
	b := newBuilder()
	for i, item := range items {
		fallback := "Section " + strconv.Itoa(i+1)
		var rec map[string]json.RawMessage
		if len(item) > 0 && item[0] == '{' && json.Unmarshal(item, &rec) == nil {
			title := fallback
			if t, ok := firstPresent(rec, "title", "heading"); ok {
				title = rawString(t)
			}
			content := ""
			if c, ok := firstPresent(rec, "content", "text"); ok {
				content = rawString(c)
			}
			b.add(title, content)
			continue
		}
		b.add(fallback, rawString(item))
	}
	return b.sections()
}

// builder keeps mapping semantics: a repeated title keeps its first position
// and takes the latest content.
type builder struct {
	out []Section
	pos map[string]int
}

func newBuilder() *builder {
	return &builder{pos: make(map[string]int)}
}

func (b *builder) add(title, content string) {
	if i, ok := b.pos[title]; ok {
		b.out[i].Content = content
		return
	}
	b.pos[title] = len(b.out)
	b.out = append(b.out, Section{Title: title, Content: content})
}

func (b *builder) sections() Sections {
	if len(b.out) == 0 {
		return nil
	}
	return b.out
}

func firstPresent(rec map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

// rawString renders a JSON value as section text: strings unquoted, null empty,
// anything else verbatim.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	return string(raw)
}
