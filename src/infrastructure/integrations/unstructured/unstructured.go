package unstructured

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
)

// UnstructuredService extracts text from uploaded documents by calling an
// Unstructured API instance.
type UnstructuredService struct {
	baseURL    string
	httpClient *http.Client
}

type UnstructuredElement struct {
	Type      string   `json:"type"`
	Text      string   `json:"text"`
	ElementID string   `json:"element_id"`
	Metadata  Metadata `json:"metadata"`
}

type Metadata struct {
	Filename   string `json:"filename,omitempty"`
	Filetype   string `json:"filetype,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
}

// Page is the extraction unit handed to the ingestion pipeline: the text of
// one source page, in document order.
type Page struct {
	Number int
	Text   string
}

func NewUnstructuredService(baseURL string, c *http.Client) *UnstructuredService {
	if c == nil {
		c = &http.Client{}
	}
	return &UnstructuredService{
		baseURL:    baseURL,
		httpClient: c,
	}
}

// ExtractPages converts raw PDF bytes into ordered (page number, text)
// pairs. An unreadable or corrupt file surfaces as an error so the caller
// can skip it without aborting sibling files.
func (s *UnstructuredService) ExtractPages(ctx context.Context, filename string, content []byte) ([]Page, error) {
	elements, err := s.convert(ctx, filename, content)
	if err != nil {
		return nil, err
	}

	// Group element texts by page, preserving element order within a page.
	byPage := make(map[int][]string)
	for _, el := range elements {
		if strings.TrimSpace(el.Text) == "" {
			continue
		}
		page := el.Metadata.PageNumber
		byPage[page] = append(byPage[page], el.Text)
	}

	numbers := make([]int, 0, len(byPage))
	for n := range byPage {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	pages := make([]Page, 0, len(numbers))
	for _, n := range numbers {
		pages = append(pages, Page{
			Number: n,
			Text:   strings.Join(byPage[n], "\n\n"),
		})
	}

	return pages, nil
}

func (s *UnstructuredService) convert(ctx context.Context, filename string, content []byte) ([]UnstructuredElement, error) {
	var requestBody bytes.Buffer
	multipartWriter := multipart.NewWriter(&requestBody)

	fileWriter, err := multipartWriter.CreateFormFile("files", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %v", err)
	}

	if _, err = io.Copy(fileWriter, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to write file content: %v", err)
	}

	if err := multipartWriter.WriteField("strategy", "fast"); err != nil {
		return nil, fmt.Errorf("failed to write strategy: %v", err)
	}

	if err := multipartWriter.WriteField("output_format", "application/json"); err != nil {
		return nil, fmt.Errorf("failed to write output format: %v", err)
	}

	multipartWriter.Close()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/general/v0/general", &requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", multipartWriter.FormDataContentType())

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("conversion service error: %s: %s", resp.Status, string(body))
	}

	var elements []UnstructuredElement
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}

	return elements, nil
}
