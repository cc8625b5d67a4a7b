package ingest

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"legisbot/src/core/rag"
)

const (
	// DefaultChunkSize is the target fragment length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of characters shared between
	// neighbouring fragments.
	DefaultChunkOverlap = 200
)

// pageSeparator joins page texts when reconstructing the document text
// fragments offsets are measured against.
const pageSeparator = "\n\n"

// Page is one extracted source page in document order.
type Page struct {
	Number int
	Text   string
}

// Splitter cuts extracted text into overlapping fragments, preferring
// paragraph and sentence boundaries before falling back to hard character
// cuts.
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}

	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
		),
	}
}

// Split turns a document's extracted pages into ordered fragments. Each
// fragment records the originating filename, its page, and its start
// offset within the document text (pages joined with a blank line), so a
// citation can always point back into the source.
func (s *Splitter) Split(filename string, pages []Page) ([]rag.Fragment, error) {
	var fragments []rag.Fragment

	base := 0
	for i, page := range pages {
		if i > 0 {
			base += len(pageSeparator)
		}

		chunks, err := s.splitter.SplitText(page.Text)
		if err != nil {
			return nil, err
		}

		cursor := 0
		for _, chunk := range chunks {
			chunk = strings.TrimSpace(chunk)
			if chunk == "" {
				continue
			}

			offset := base + cursor
			if idx := strings.Index(page.Text[cursor:], chunk); idx >= 0 {
				offset = base + cursor + idx
				// Advance past the fragment start only: neighbouring
				// fragments overlap, so the next one may begin before
				// this one ends.
				cursor = cursor + idx + 1
			}

			fragments = append(fragments, rag.Fragment{
				Text:     chunk,
				Filename: filename,
				Page:     page.Number,
				Offset:   offset,
			})
		}

		base += len(page.Text)
	}

	return fragments, nil
}

// DocumentText reconstructs the extracted text fragments offsets refer to.
func DocumentText(pages []Page) string {
	texts := make([]string, len(pages))
	for i, page := range pages {
		texts[i] = page.Text
	}
	return strings.Join(texts, pageSeparator)
}
