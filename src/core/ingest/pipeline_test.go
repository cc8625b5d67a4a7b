package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"legisbot/src/core/ingest"
	"legisbot/src/core/rag"
)

type fakeExtractor struct {
	pages map[string][]ingest.Page
	fail  map[string]bool
}

func (e *fakeExtractor) ExtractPages(ctx context.Context, filename string, content []byte) ([]ingest.Page, error) {
	if e.fail[filename] {
		return nil, fmt.Errorf("unreadable file")
	}
	return e.pages[filename], nil
}

type fakeIndexer struct {
	ready  bool
	addErr error
	adds   int
	batch  []rag.Fragment
}

func (ix *fakeIndexer) Ready(ctx context.Context) bool {
	return ix.ready
}

func (ix *fakeIndexer) Add(ctx context.Context, fragments []rag.Fragment) error {
	ix.adds++
	if ix.addErr != nil {
		return ix.addErr
	}
	ix.batch = append(ix.batch, fragments...)
	return nil
}

type fakeDocumentStore struct {
	recorded []string
	uploader int64
}

func (s *fakeDocumentStore) RecordDocuments(ctx context.Context, filenames []string, uploaderID int64) error {
	s.recorded = append(s.recorded, filenames...)
	s.uploader = uploaderID
	return nil
}

func file(name, text string) ingest.File {
	return ingest.File{Name: name, Content: strings.NewReader(text)}
}

func newTestPipeline(extractor *fakeExtractor, index *fakeIndexer, docs *fakeDocumentStore, opts ...ingest.Option) *ingest.Pipeline {
	return ingest.NewPipeline(extractor, index, docs, ingest.NewSplitter(1000, 200), opts...)
}

func TestIngestEmptyBatch(t *testing.T) {
	index := &fakeIndexer{ready: true}
	docs := &fakeDocumentStore{}
	p := newTestPipeline(&fakeExtractor{}, index, docs)

	processed, err := p.Ingest(context.Background(), nil, 1)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(processed) != 0 {
		t.Errorf("Ingest() processed = %v, want empty", processed)
	}
	if index.adds != 0 {
		t.Errorf("Ingest() touched the index on an empty batch")
	}
}

func TestIngestIndexUnavailable(t *testing.T) {
	index := &fakeIndexer{ready: false}
	docs := &fakeDocumentStore{}
	extractor := &fakeExtractor{pages: map[string][]ingest.Page{
		"a.pdf": {{Number: 1, Text: "Texto legal."}},
	}}
	p := newTestPipeline(extractor, index, docs)

	_, err := p.Ingest(context.Background(), []ingest.File{file("a.pdf", "raw")}, 1)
	if !errors.Is(err, rag.ErrIndexUnavailable) {
		t.Fatalf("Ingest() error = %v, want ErrIndexUnavailable", err)
	}
	if len(docs.recorded) != 0 {
		t.Errorf("Ingest() recorded documents despite unavailable index")
	}
}

func TestIngestBatch(t *testing.T) {
	index := &fakeIndexer{ready: true}
	docs := &fakeDocumentStore{}
	extractor := &fakeExtractor{pages: map[string][]ingest.Page{
		"a.pdf": {{Number: 1, Text: "Articulo primero."}},
		"b.pdf": {{Number: 1, Text: "Articulo segundo."}},
	}}
	p := newTestPipeline(extractor, index, docs)

	processed, err := p.Ingest(context.Background(), []ingest.File{
		file("a.pdf", "raw a"),
		file("b.pdf", "raw b"),
	}, 42)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	want := []string{"a.pdf", "b.pdf"}
	if len(processed) != len(want) {
		t.Fatalf("Ingest() processed = %v, want %v", processed, want)
	}
	for i := range want {
		if processed[i] != want[i] {
			t.Errorf("Ingest() processed[%d] = %q, want %q", i, processed[i], want[i])
		}
	}

	if index.adds != 1 {
		t.Errorf("Ingest() called Add %d times, want 1", index.adds)
	}
	if len(index.batch) != 2 {
		t.Errorf("Ingest() indexed %d fragments, want 2", len(index.batch))
	}
	if docs.uploader != 42 {
		t.Errorf("Ingest() recorded uploader %d, want 42", docs.uploader)
	}
}

func TestIngestSkipsFailedFile(t *testing.T) {
	index := &fakeIndexer{ready: true}
	docs := &fakeDocumentStore{}
	extractor := &fakeExtractor{
		pages: map[string][]ingest.Page{
			"ok.pdf": {{Number: 1, Text: "Texto valido."}},
		},
		fail: map[string]bool{"bad.pdf": true},
	}
	p := newTestPipeline(extractor, index, docs)

	processed, err := p.Ingest(context.Background(), []ingest.File{
		file("bad.pdf", "corrupt"),
		file("ok.pdf", "raw"),
	}, 1)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(processed) != 1 || processed[0] != "ok.pdf" {
		t.Errorf("Ingest() processed = %v, want [ok.pdf]", processed)
	}
	if len(docs.recorded) != 1 || docs.recorded[0] != "ok.pdf" {
		t.Errorf("Ingest() recorded = %v, want [ok.pdf]", docs.recorded)
	}
}

func TestIngestEmptyExtraction(t *testing.T) {
	extractor := &fakeExtractor{pages: map[string][]ingest.Page{
		"blank.pdf": {},
	}}

	t.Run("skipped by default", func(t *testing.T) {
		index := &fakeIndexer{ready: true}
		docs := &fakeDocumentStore{}
		p := newTestPipeline(extractor, index, docs)

		processed, err := p.Ingest(context.Background(), []ingest.File{file("blank.pdf", "raw")}, 1)
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if len(processed) != 0 {
			t.Errorf("Ingest() processed = %v, want empty", processed)
		}
		if len(docs.recorded) != 0 {
			t.Errorf("Ingest() recorded = %v, want empty", docs.recorded)
		}
	})

	t.Run("recorded when configured", func(t *testing.T) {
		index := &fakeIndexer{ready: true}
		docs := &fakeDocumentStore{}
		p := newTestPipeline(extractor, index, docs, ingest.WithDocumentOnEmpty())

		processed, err := p.Ingest(context.Background(), []ingest.File{file("blank.pdf", "raw")}, 1)
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if len(processed) != 1 || processed[0] != "blank.pdf" {
			t.Errorf("Ingest() processed = %v, want [blank.pdf]", processed)
		}
		if len(docs.recorded) != 1 {
			t.Errorf("Ingest() recorded = %v, want [blank.pdf]", docs.recorded)
		}
	})
}

func TestIngestIndexFailureRecordsNothing(t *testing.T) {
	index := &fakeIndexer{ready: true, addErr: errors.New("batch rejected")}
	docs := &fakeDocumentStore{}
	extractor := &fakeExtractor{pages: map[string][]ingest.Page{
		"a.pdf": {{Number: 1, Text: "Texto legal."}},
	}}
	p := newTestPipeline(extractor, index, docs)

	_, err := p.Ingest(context.Background(), []ingest.File{file("a.pdf", "raw")}, 1)
	if err == nil {
		t.Fatal("Ingest() error = nil, want index failure")
	}
	if len(docs.recorded) != 0 {
		t.Errorf("Ingest() recorded documents despite index failure")
	}
}

func TestIngestReportsProgressPerFile(t *testing.T) {
	extractor := &fakeExtractor{
		pages: map[string][]ingest.Page{
			"a.pdf": {{Number: 1, Text: "Artículo 1. Texto."}},
			"c.pdf": {{Number: 1, Text: "Artículo 2. Texto."}},
		},
		fail: map[string]bool{"b.pdf": true},
	}
	index := &fakeIndexer{ready: true}
	docs := &fakeDocumentStore{}

	type report struct {
		filename string
		failed   bool
	}
	var reports []report
	p := newTestPipeline(extractor, index, docs, ingest.WithProgress(func(filename string, err error) {
		reports = append(reports, report{filename: filename, failed: err != nil})
	}))

	_, err := p.Ingest(context.Background(), []ingest.File{
		file("a.pdf", "x"),
		file("b.pdf", "x"),
		file("c.pdf", "x"),
	}, 1)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	want := []report{
		{filename: "a.pdf", failed: false},
		{filename: "b.pdf", failed: true},
		{filename: "c.pdf", failed: false},
	}
	if len(reports) != len(want) {
		t.Fatalf("progress reports = %v, want %v", reports, want)
	}
	for i := range want {
		if reports[i] != want[i] {
			t.Errorf("reports[%d] = %v, want %v", i, reports[i], want[i])
		}
	}
	if index.adds != 1 {
		t.Errorf("Ingest() indexed in %d calls, want a single batch", index.adds)
	}
}
