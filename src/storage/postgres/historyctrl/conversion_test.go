package historyctrl

import (
	"testing"

	"gorm.io/datatypes"

	"legisbot/src/core/conversation"
	"legisbot/src/core/rag"
)

func TestToMessage(t *testing.T) {
	row := &Message{
		ID:        1,
		HistoryID: 10,
		Sender:    string(conversation.SenderBot),
		Content:   "respuesta",
		Sources:   datatypes.JSON(`[{"source":"ley.pdf","page":"3","content_preview":"Artículo 5"}]`),
	}

	msg, err := toMessage(row)
	if err != nil {
		t.Fatalf("toMessage() error = %v", err)
	}
	if len(msg.Sources) != 1 {
		t.Fatalf("toMessage() sources = %v, want 1 citation", msg.Sources)
	}
	want := rag.Citation{Source: "ley.pdf", Page: "3", ContentPreview: "Artículo 5"}
	if msg.Sources[0] != want {
		t.Errorf("toMessage() citation = %+v, want %+v", msg.Sources[0], want)
	}
}

func TestToMessageMalformedSources(t *testing.T) {
	row := &Message{
		ID:      2,
		Sender:  string(conversation.SenderBot),
		Content: "respuesta",
		Sources: datatypes.JSON(`{"not":"a list"`),
	}

	if _, err := toMessage(row); err == nil {
		t.Fatal("toMessage() error = nil, want unmarshal failure")
	}
}

func TestToHistoryKeepsTurnWithMalformedSources(t *testing.T) {
	history := &ChatHistory{ID: 10, UserID: 42}
	rows := []Message{
		{ID: 1, HistoryID: 10, Sender: string(conversation.SenderUser), Content: "pregunta"},
		{
			ID:        2,
			HistoryID: 10,
			Sender:    string(conversation.SenderBot),
			Content:   "respuesta",
			Sources:   datatypes.JSON(`{"not":"a list"`),
		},
	}

	got := toHistory(history, rows)
	if len(got.Messages) != 2 {
		t.Fatalf("toHistory() kept %d messages, want 2", len(got.Messages))
	}
	if got.Messages[1].Content != "respuesta" {
		t.Errorf("toHistory() content = %q, want %q", got.Messages[1].Content, "respuesta")
	}
	if got.Messages[1].Sources != nil {
		t.Errorf("toHistory() sources = %v, want none for a malformed blob", got.Messages[1].Sources)
	}
}
