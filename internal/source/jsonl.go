// Package source reads papers for indexing from JSON Lines files, filling in
// raw text from the paper PDF when the record carries none.
package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperdex/internal/domain/paper"
)

// maxLineBytes bounds one JSONL record; full texts run to a few MB.
const maxLineBytes = 64 << 20

// TextExtractor pulls plain text out of a paper file.
type TextExtractor interface {
	ExtractText(path string, maxPages int) (string, error)
}

// Reader decodes paper records.
type Reader struct {
	extractor TextExtractor
	maxPages  int
	logger    *zap.Logger
}

// NewReader creates a paper reader. A nil extractor disables PDF fallback.
func NewReader(extractor TextExtractor, maxPages int, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{extractor: extractor, maxPages: maxPages, logger: logger}
}

// ReadFile reads a JSON Lines file of papers. Relative pdf_path values are
// resolved against the file's directory.
func (r *Reader) ReadFile(path string) ([]paper.Paper, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open papers %s: %w", path, err)
	}
	defer f.Close()

	return r.Read(f, filepath.Dir(path))
}

// Read decodes one paper per non-blank line. A malformed line fails the
// whole read with its line number.
func (r *Reader) Read(in io.Reader, baseDir string) ([]paper.Paper, error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var papers []paper.Paper
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		var p paper.Paper
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		r.prepare(&p, baseDir)
		papers = append(papers, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read papers: %w", err)
	}
	return papers, nil
}

// ReadPaperFile reads a single paper stored as one JSON document.
func (r *Reader) ReadPaperFile(path string) (paper.Paper, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return paper.Paper{}, fmt.Errorf("read paper %s: %w", path, err)
	}
	var p paper.Paper
	if err := json.Unmarshal(data, &p); err != nil {
		return paper.Paper{}, fmt.Errorf("decode paper %s: %w", path, err)
	}
	r.prepare(&p, filepath.Dir(path))
	return p, nil
}

func (r *Reader) prepare(p *paper.Paper, baseDir string) {
	if p.PublishedDate.Unparsed() {
		r.logger.Warn("Unrecognised published_date, indexing without date",
			zap.String("arxiv_id", p.ArxivID),
			zap.String("published_date", p.PublishedDate.Raw),
		)
	}
	r.fillText(p, baseDir)
}

// fillText extracts raw text from the PDF of a paper that has none.
// Extraction failures leave the paper as is.
func (r *Reader) fillText(p *paper.Paper, baseDir string) {
	if r.extractor == nil || p.PDFPath == "" || strings.TrimSpace(p.Text()) != "" {
		return
	}
	path := p.PDFPath
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}

	text, err := r.extractor.ExtractText(path, r.maxPages)
	if err != nil {
		r.logger.Warn("Failed to extract PDF text",
			zap.String("arxiv_id", p.ArxivID),
			zap.String("pdf_path", path),
			zap.Error(err),
		)
		return
	}
	p.RawText = text
	r.logger.Debug("Extracted PDF text",
		zap.String("arxiv_id", p.ArxivID),
		zap.Int("chars", len(text)),
	)
}
