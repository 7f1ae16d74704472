package chunker

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
	"github.com/kailas-cloud/paperdex/internal/domain/paper"
)

// chunkBySections sizes each filtered section: small ones are grouped, mid-sized
// ones become one chunk each and large ones are windowed. Every chunk carries
// the title/abstract header.
func (c *Chunker) chunkBySections(in Input) []chunk.Chunk {
	sections := c.filterSections(in.Sections, in.Abstract)
	if len(sections) == 0 {
		c.logger.Debug("no meaningful sections after filtering", zap.String("arxiv_id", in.ArxivID))
		return nil
	}

	b := &sectionBuilder{
		Chunker: c,
		in:      in,
		header:  header(in.Title, in.Abstract),
	}
	var pending paper.Sections
	for i, s := range sections {
		n := wordCount(s.Content)
		switch {
		case n < smallSectionWords:
			pending = append(pending, s)
			last := i == len(sections)-1
			if last || wordCount(sections[i+1].Content) >= smallSectionWords {
				b.flushSmall(pending)
				pending = nil
			}
		case n <= largeSectionWords:
			b.emit(b.header+sectionBlock(s.Title, s.Content), s.Title)
		default:
			b.splitLarge(s)
		}
	}
	return b.chunks
}

type sectionBuilder struct {
	*Chunker
	in     Input
	header string
	chunks []chunk.Chunk
}

func (b *sectionBuilder) emit(text, title string) {
	b.chunks = append(b.chunks, chunk.New(text, chunk.Metadata{
		ChunkIndex:   len(b.chunks),
		EndChar:      utf8.RuneCountInString(text),
		WordCount:    wordCount(text),
		SectionTitle: title,
	}, b.in.ArxivID, b.in.PaperID))
}

// flushSmall emits a group of small sections. A group that stays under the
// merge limit together with the header is appended to the previous chunk,
// which keeps its index; otherwise the group becomes a new chunk.
func (b *sectionBuilder) flushSmall(group paper.Sections) {
	if len(group) == 0 {
		return
	}

	blocks := make([]string, len(group))
	titles := make([]string, len(group))
	words := 0
	for i, s := range group {
		blocks[i] = sectionBlock(s.Title, s.Content)
		titles[i] = s.Title
		words += wordCount(s.Content)
	}
	body := strings.Join(blocks, "\n\n")

	if words+wordCount(b.header) < mergeLimitWords && len(b.chunks) > 0 {
		last := len(b.chunks) - 1
		prev := b.chunks[last]
		merged := prev.Text() + "\n\n" + body

		meta := prev.Metadata()
		meta.StartChar = 0
		meta.EndChar = utf8.RuneCountInString(merged)
		meta.WordCount = wordCount(merged)
		meta.OverlapWithPrevious = 0
		meta.OverlapWithNext = 0
		meta.SectionTitle += " + Combined"
		b.chunks[last] = prev.With(merged, meta)
		return
	}

	title := strings.Join(titles[:min(3, len(titles))], " + ")
	if len(titles) > 3 {
		title += " + " + strconv.Itoa(len(titles)-3) + " more"
	}
	b.emit(b.header+body, title)
}

// splitLarge windows the framed section and prefixes the header to each part.
func (b *sectionBuilder) splitLarge(s paper.Section) {
	parts := b.ChunkText(sectionBlock(s.Title, s.Content), b.in.ArxivID, b.in.PaperID)
	headerLen := utf8.RuneCountInString(b.header)
	base := len(b.chunks)

	for i, p := range parts {
		text := b.header + p.Text()
		meta := p.Metadata()
		meta.ChunkIndex = base + i
		meta.EndChar += headerLen
		meta.WordCount = wordCount(text)
		meta.SectionTitle = s.Title + " (Part " + strconv.Itoa(i+1) + ")"
		b.chunks = append(b.chunks, p.With(text, meta))
	}
}
