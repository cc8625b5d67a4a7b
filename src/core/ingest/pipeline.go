package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"legisbot/src/core/rag"
	"legisbot/src/infrastructure/log"
)

// File is one uploaded document handed to the pipeline.
type File struct {
	Name    string
	Content io.Reader
}

// Extractor converts raw file bytes into ordered (page, text) pairs.
type Extractor interface {
	ExtractPages(ctx context.Context, filename string, content []byte) ([]Page, error)
}

// Indexer receives the accumulated fragment batch. Implemented by the
// semantic index.
type Indexer interface {
	Ready(ctx context.Context) bool
	Add(ctx context.Context, fragments []rag.Fragment) error
}

// DocumentStore records one Document row per successfully processed file.
// The relational commit happens only after the bulk vector insert
// succeeded, so Document rows never reference fragments that failed to
// index.
type DocumentStore interface {
	RecordDocuments(ctx context.Context, filenames []string, uploaderID int64) error
}

// Pipeline converts uploaded documents into indexed fragments with
// provenance metadata.
type Pipeline struct {
	extractor Extractor
	index     Indexer
	documents DocumentStore
	splitter  *Splitter

	// documentOnEmpty controls whether a file that yielded zero fragments
	// still gets a Document row. Off by default: no usable text is treated
	// as a failure for that file.
	documentOnEmpty bool

	// progress, when set, is called once per file in input order after its
	// extraction finished, with the per-file error if it failed.
	progress func(filename string, err error)
}

type Option func(*Pipeline)

// WithDocumentOnEmpty makes the pipeline record a Document row even for
// files from which no text could be extracted.
func WithDocumentOnEmpty() Option {
	return func(p *Pipeline) {
		p.documentOnEmpty = true
	}
}

// WithProgress registers a per-file completion callback. Useful for CLI
// progress reporting on large batches.
func WithProgress(fn func(filename string, err error)) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

func NewPipeline(extractor Extractor, index Indexer, documents DocumentStore, splitter *Splitter, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		index:     index,
		documents: documents,
		splitter:  splitter,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// fileResult carries the outcome of extracting and chunking one file.
type fileResult struct {
	name      string
	fragments []rag.Fragment
	err       error
}

// Ingest processes an upload batch and returns the names of the files
// that were successfully indexed. Files fail independently: a corrupt or
// unreadable file is skipped with a logged error and does not abort its
// siblings. The whole batch fails only when the semantic index itself is
// unavailable, checked before any file is touched.
func (p *Pipeline) Ingest(ctx context.Context, files []File, uploaderID int64) ([]string, error) {
	if len(files) == 0 {
		return []string{}, nil
	}

	if !p.index.Ready(ctx) {
		return []string{}, fmt.Errorf("refusing ingestion batch: %w", rag.ErrIndexUnavailable)
	}

	tempDir, err := os.MkdirTemp("", "legisbot-ingest-*")
	if err != nil {
		return []string{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			log.Error(err, "failed to clean up ingestion temp dir", "dir", tempDir)
		}
	}()

	// Extraction and chunking are independent per file; run them
	// concurrently and keep results in input order so the fragment batch
	// stays deterministic.
	results := make([]fileResult, len(files))
	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file File) {
			defer wg.Done()
			results[i] = p.processFile(ctx, tempDir, i, file)
		}(i, file)
	}
	wg.Wait()

	var batch []rag.Fragment
	var processed []string
	for _, result := range results {
		if p.progress != nil {
			p.progress(result.name, result.err)
		}
		if result.err != nil {
			log.Error(result.err, "skipping file", "filename", result.name)
			continue
		}
		if len(result.fragments) == 0 && !p.documentOnEmpty {
			log.Info("no usable text extracted, skipping file", "filename", result.name)
			continue
		}
		batch = append(batch, result.fragments...)
		processed = append(processed, result.name)
	}

	if len(processed) == 0 {
		return []string{}, nil
	}

	// One bulk embed-and-insert per batch keeps the embedding call count
	// proportional to batches rather than files.
	if len(batch) > 0 {
		if err := p.index.Add(ctx, batch); err != nil {
			return []string{}, fmt.Errorf("failed to index fragment batch: %w", err)
		}
	}

	if err := p.documents.RecordDocuments(ctx, processed, uploaderID); err != nil {
		return []string{}, fmt.Errorf("failed to record documents: %w", err)
	}

	log.Info("ingestion batch complete",
		"files", len(files),
		"processed", len(processed),
		"fragments", len(batch))

	return processed, nil
}

// processFile persists the upload to a scoped temp location, extracts its
// text, and splits it into fragments. The temp file lives under the
// batch's temp dir, which is removed on every exit path.
func (p *Pipeline) processFile(ctx context.Context, tempDir string, i int, file File) fileResult {
	result := fileResult{name: file.Name}

	tempPath := filepath.Join(tempDir, fmt.Sprintf("%d-%s", i, filepath.Base(file.Name)))
	out, err := os.Create(tempPath)
	if err != nil {
		result.err = fmt.Errorf("failed to create temp file: %w", err)
		return result
	}
	if _, err := io.Copy(out, file.Content); err != nil {
		out.Close()
		result.err = fmt.Errorf("failed to persist upload: %w", err)
		return result
	}
	if err := out.Close(); err != nil {
		result.err = fmt.Errorf("failed to persist upload: %w", err)
		return result
	}

	content, err := os.ReadFile(tempPath)
	if err != nil {
		result.err = fmt.Errorf("failed to read temp file: %w", err)
		return result
	}

	pages, err := p.extractor.ExtractPages(ctx, file.Name, content)
	if err != nil {
		result.err = fmt.Errorf("failed to extract text: %w", err)
		return result
	}

	fragments, err := p.splitter.Split(file.Name, pages)
	if err != nil {
		result.err = fmt.Errorf("failed to split text: %w", err)
		return result
	}

	result.fragments = fragments
	return result
}
