package chat

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"legisbot/src/core/rag"
)

// RefusalSentence is the exact sentence the model is instructed to emit
// when the retrieved context does not contain the answer. This is a
// prompt-level contract; no code tries to detect fabrication after the
// fact.
const RefusalSentence = "Lo siento, no tengo información sobre ese tema en los documentos proporcionados."

// UnavailableNotice is logged as the bot turn when generation could not
// run, so every user message is still followed by exactly one bot message.
const UnavailableNotice = "El servicio de generación no está disponible en este momento. Por favor, inténtalo de nuevo más tarde."

const systemPrompt = `Eres "LegislatiBot", un asistente legal experto. Tu tarea es responder preguntas basándote únicamente en el siguiente contexto extraído de documentos oficiales.
Si el contexto no contiene la respuesta, di explícitamente: "` + RefusalSentence + `"
No inventes información. Sé claro y conciso.`

var promptTemplate = template.Must(template.New("answer").Parse(`CONTEXTO:
{{.Context}}

PREGUNTA:
{{.Question}}

RESPUESTA:
`))

type promptData struct {
	Context  string
	Question string
}

// The answer flow is an ordered list of stages, each a pure function from
// one typed value to the next:
//
//	retrieve -> formatContext -> buildPrompt -> generate -> record
//
// The pure stages live here so each can be unit-tested without the model
// services.

// formatContext concatenates retrieved fragments into the citation-
// annotated context block fed to the model.
func formatContext(fragments []rag.ScoredFragment) string {
	if len(fragments) == 0 {
		return "(sin contexto)"
	}

	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = fmt.Sprintf("Fuente: %s (Página: %s)\nContenido: %s",
			f.Filename, pageLabel(f.Page), f.Text)
	}
	return strings.Join(parts, "\n\n")
}

// buildPrompt renders the grounded prompt: fixed instruction, context
// block, then the user's verbatim question.
func buildPrompt(contextBlock, question string) (system, prompt string, err error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, promptData{Context: contextBlock, Question: question}); err != nil {
		return "", "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return systemPrompt, buf.String(), nil
}

const previewLimit = 200

// buildCitations converts retrieved fragments into display citations.
// Previews are capped and newline-collapsed; they are never fed back into
// the model.
func buildCitations(fragments []rag.ScoredFragment) []rag.Citation {
	citations := make([]rag.Citation, len(fragments))
	for i, f := range fragments {
		citations[i] = rag.Citation{
			Source:         f.Filename,
			Page:           pageLabel(f.Page),
			ContentPreview: preview(f.Text),
		}
	}
	return citations
}

func pageLabel(page int) string {
	if page <= 0 {
		return rag.PageUnknown
	}
	return strconv.Itoa(page)
}

func preview(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) <= previewLimit {
		return collapsed
	}
	return string(runes[:previewLimit]) + "..."
}
