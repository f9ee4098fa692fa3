package domain

import (
	"encoding/json"
	"testing"
)

func TestParseSourceType(t *testing.T) {
	cases := map[string]SourceType{
		"user":    SourceUser,
		"group":   SourceGroup,
		"room":    SourceRoom,
		"":        SourceUnknown,
		"channel": SourceUnknown,
	}
	for in, want := range cases {
		if got := ParseSourceType(in); got != want {
			t.Errorf("ParseSourceType(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseMessageKind_UnknownFallsToOther(t *testing.T) {
	for _, in := range []string{"audio", "location", "file", ""} {
		if got := ParseMessageKind(in); got != KindOther {
			t.Errorf("ParseMessageKind(%q) = %v, want KindOther", in, got)
		}
	}
	if got := ParseMessageKind("sticker"); got != KindSticker {
		t.Errorf("expected KindSticker, got %v", got)
	}
}

func TestSource_ChatID(t *testing.T) {
	cases := []struct {
		src  Source
		want string
	}{
		{Source{Type: "user", UserID: "U1"}, "U1"},
		{Source{Type: "group", GroupID: "G1", UserID: "U1"}, "G1"},
		{Source{Type: "room", RoomID: "R1"}, "R1"},
		{Source{Type: "bogus", UserID: "U1"}, ""},
	}
	for _, c := range cases {
		if got := c.src.ChatID(); got != c.want {
			t.Errorf("ChatID for %q = %q, want %q", c.src.Type, got, c.want)
		}
	}
}

func TestCallbackRequest_Unmarshal(t *testing.T) {
	body := `{"events":[{"type":"message","source":{"type":"user","userId":"Uabc123"},"message":{"type":"text","id":"m1","text":"hi"}}]}`
	var req CallbackRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatal(err)
	}
	if len(req.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(req.Events))
	}
	ev := req.Events[0]
	if ev.Source.UserID != "Uabc123" {
		t.Errorf("unexpected user id: %s", ev.Source.UserID)
	}
	if ev.Message.Kind() != KindText {
		t.Errorf("expected text kind, got %v", ev.Message.Kind())
	}
	if ev.Message.Text != "hi" {
		t.Errorf("unexpected text: %s", ev.Message.Text)
	}
}

func TestMessage_Kind_Nil(t *testing.T) {
	var m *Message
	if m.Kind() != KindOther {
		t.Error("nil message should be KindOther")
	}
}
