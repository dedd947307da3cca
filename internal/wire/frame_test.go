package wire

import (
	"encoding/json"
	"testing"
)

func TestCommandDestinationRoundTrip(t *testing.T) {
	dest := CommandDestination(CmdExpenseCreate)
	if dest != "/app/expense:create" {
		t.Errorf("unexpected destination: %s", dest)
	}

	cmd, ok := ParseCommand(dest)
	if !ok {
		t.Fatal("expected destination to parse as a command")
	}
	if cmd != CmdExpenseCreate {
		t.Errorf("expected %s, got %s", CmdExpenseCreate, cmd)
	}

	if _, ok := ParseCommand("/topic/ABC123/expense:create"); ok {
		t.Error("topic destination must not parse as a command")
	}
}

func TestTopicNaming(t *testing.T) {
	if got := EventTopic("ABC123", EntityExpense, OpCreate); got != "/topic/ABC123/expense:create" {
		t.Errorf("unexpected event topic: %s", got)
	}
	if got := AdminTopic(EntityEvent, OpUpdate); got != "/topic/admin/event:update" {
		t.Errorf("unexpected admin topic: %s", got)
	}
}

func TestParseTopic(t *testing.T) {
	code, entity, op, ok := ParseTopic("/topic/ABC123/expense:create")
	if !ok {
		t.Fatal("expected topic to parse")
	}
	if code != "ABC123" || entity != EntityExpense || op != OpCreate {
		t.Errorf("got %s %s %s", code, entity, op)
	}

	code, entity, op, ok = ParseTopic(AdminTopic(EntityEvent, OpUpdate))
	if !ok || code != "admin" || entity != EntityEvent || op != OpUpdate {
		t.Errorf("admin topic parsed as %s %s %s (ok=%v)", code, entity, op, ok)
	}

	for _, dest := range []string{"/app/event:read", "/topic/ABC123", "/topic/ABC123/expense", ReplyQueue} {
		if _, _, _, ok := ParseTopic(dest); ok {
			t.Errorf("%s must not parse as a topic", dest)
		}
	}
}

func TestIsAdminDestination(t *testing.T) {
	if !IsAdminDestination(AdminTopic(EntityEvent, OpCreate)) {
		t.Error("admin topic should be admin-scoped")
	}
	if IsAdminDestination(EventTopic("admin", EntityEvent, OpCreate) + "x") {
		// An event whose code merely starts with "admin" is still
		// "/topic/adminX/...", not "/topic/admin/...".
		t.Error("non-admin topic misclassified")
	}
	if IsAdminDestination(EventTopic("ABC123", EntityExpense, OpDelete)) {
		t.Error("event topic misclassified as admin")
	}
}

func TestIsAdminCommand(t *testing.T) {
	if !IsAdminCommand(CmdAdminImport) {
		t.Error("admin import must require the passcode check")
	}
	if IsAdminCommand(CmdExpenseCreate) {
		t.Error("expense create must not require the passcode check")
	}
}

func TestFrameJSON(t *testing.T) {
	frame, err := NewMessage("/topic/ABC123/event:update", map[string]string{"title": "Trip"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	raw, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Frame
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != FrameMessage {
		t.Errorf("expected MESSAGE, got %s", decoded.Type)
	}
	if decoded.Destination != "/topic/ABC123/event:update" {
		t.Errorf("unexpected destination: %s", decoded.Destination)
	}
}

func TestFramePasscode(t *testing.T) {
	frame := &Frame{
		Type:        FrameSubscribe,
		Destination: AdminTopic(EntityEvent, OpCreate),
		Headers:     map[string]string{HeaderPasscode: "sesame"},
	}
	if frame.Passcode() != "sesame" {
		t.Errorf("expected passcode header, got %q", frame.Passcode())
	}

	bare := &Frame{Type: FrameSubscribe}
	if bare.Passcode() != "" {
		t.Error("expected empty passcode for missing headers")
	}
}
