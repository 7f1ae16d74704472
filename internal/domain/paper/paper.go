package paper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Paper is the paper record consumed by the indexing pipeline.
type Paper struct {
	ID            ID         `json:"id"`
	ArxivID       string     `json:"arxiv_id"`
	Title         string     `json:"title"`
	Abstract      string     `json:"abstract"`
	Authors       Authors    `json:"authors"`
	Categories    Categories `json:"categories"`
	PublishedDate Date       `json:"published_date"`
	RawText       string     `json:"raw_text"`
	FullText      string     `json:"full_text"`
	Sections      Sections   `json:"sections"`
	PDFPath       string     `json:"pdf_path,omitempty"`
}

// Text returns the extracted full text, preferring raw_text over full_text.
func (p *Paper) Text() string {
	if p.RawText != "" {
		return p.RawText
	}
	return p.FullText
}

// ID is a paper database identifier. It decodes from a JSON string or number.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode paper id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode paper id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Authors is the author list. A plain JSON string decodes to a single entry.
type Authors []string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Authors) UnmarshalJSON(data []byte) error {
	list, err := stringOrList(data)
	if err != nil {
		return fmt.Errorf("decode authors: %w", err)
	}
	*a = list
	return nil
}

// Joined renders the authors as one comma-separated string.
func (a Authors) Joined() string {
	return strings.Join(a, ", ")
}

// Categories is the arXiv category list. A plain JSON string is split on
// commas and whitespace.
type Categories []string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Categories) UnmarshalJSON(data []byte) error {
	list, err := stringOrList(data)
	if err != nil {
		return fmt.Errorf("decode categories: %w", err)
	}
	if len(list) == 1 {
		list = strings.FieldsFunc(list[0], func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
	}
	*c = list
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Date is a publication date. It decodes from RFC 3339, ISO date(-time) strings
// or unix seconds; null and "" leave it zero. A value in no supported layout
// also leaves it zero and is kept in Raw.
type Date struct {
	time.Time
	Raw string
}

// NewDate wraps t.
func NewDate(t time.Time) Date { return Date{Time: t} }

// Unparsed reports whether a non-empty value could not be read as a date.
func (d Date) Unparsed() bool {
	return d.IsZero() && d.Raw != ""
}

// UnmarshalJSON implements json.Unmarshaler. An unrecognised value is not an error.
func (d *Date) UnmarshalJSON(data []byte) error {
	*d = Date{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] != '"' {
		secs, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			d.Raw = string(data)
			return nil
		}
		d.Time = time.Unix(secs, 0).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode published_date: %w", err)
	}
	t, err := ParseDate(s)
	if err != nil {
		d.Raw = s
		return nil
	}
	d.Time = t
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.UTC().Format(time.RFC3339))
}

// ParseDate parses a publication date in any supported layout. "" yields zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported published_date %q", s)
}

func stringOrList(data []byte) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err //nolint:wrapcheck // wrapped by caller
		}
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		return []string{s}, nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	return list, nil
}
