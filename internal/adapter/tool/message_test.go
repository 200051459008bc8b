package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSendMessageTool(t *testing.T) {
	sc := &fakeSideChannel{}
	tool := NewSendMessageTool(newTestLogger())

	params, _ := json.Marshal(sendMessageParams{Content: "hello there"})
	res, err := tool.Execute(context.Background(), params, sc)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}
	if res.Content != "Message sent" {
		t.Errorf("Content = %q", res.Content)
	}

	if len(sc.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sc.sent))
	}
	if sc.sent[0] != "hello there" {
		t.Errorf("sent %q", sc.sent[0])
	}
	if !sc.replies[0] {
		t.Error("reply should default to true")
	}
}

func TestSendMessageToolEscapesMarkdown(t *testing.T) {
	sc := &fakeSideChannel{}
	tool := NewSendMessageTool(newTestLogger())

	params, _ := json.Marshal(sendMessageParams{Content: "It is 2 * 3 = 6, really_truly"})
	if _, err := tool.Execute(context.Background(), params, sc); err != nil {
		t.Fatal(err)
	}

	got := sc.sent[0]
	if !strings.Contains(got, `\*`) {
		t.Errorf("asterisk not escaped: %q", got)
	}
	if !strings.Contains(got, `really\_truly`) {
		t.Errorf("underscore not escaped: %q", got)
	}
}

func TestSendMessageToolPreservesMentions(t *testing.T) {
	sc := &fakeSideChannel{}
	tool := NewSendMessageTool(newTestLogger())

	params, _ := json.Marshal(sendMessageParams{Content: "hi <@123456789>"})
	if _, err := tool.Execute(context.Background(), params, sc); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sc.sent[0], "<@123456789>") {
		t.Errorf("mention was mangled: %q", sc.sent[0])
	}
}

func TestSendMessageToolTruncates(t *testing.T) {
	sc := &fakeSideChannel{}
	tool := NewSendMessageTool(newTestLogger())

	params, _ := json.Marshal(sendMessageParams{Content: strings.Repeat("a", 3000)})
	if _, err := tool.Execute(context.Background(), params, sc); err != nil {
		t.Fatal(err)
	}
	if utf8.RuneCountInString(sc.sent[0]) > 2000 {
		t.Errorf("message exceeds Discord limit: %d runes", utf8.RuneCountInString(sc.sent[0]))
	}
}

func TestSendMessageToolReplyFlag(t *testing.T) {
	sc := &fakeSideChannel{}
	tool := NewSendMessageTool(newTestLogger())

	reply := false
	params, _ := json.Marshal(sendMessageParams{Content: "no reply", ReplyToOriginal: &reply})
	if _, err := tool.Execute(context.Background(), params, sc); err != nil {
		t.Fatal(err)
	}
	if sc.replies[0] {
		t.Error("reply flag should be false")
	}
}

func TestSendMessageToolEmptyContent(t *testing.T) {
	sc := &fakeSideChannel{}
	tool := NewSendMessageTool(newTestLogger())

	params, _ := json.Marshal(sendMessageParams{Content: "   "})
	res, err := tool.Execute(context.Background(), params, sc)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error result for empty content")
	}
	if len(sc.sent) != 0 {
		t.Error("nothing should have been sent")
	}
}

func TestSendMessageToolSendFailure(t *testing.T) {
	sc := &fakeSideChannel{sendErr: fmt.Errorf("channel gone")}
	tool := NewSendMessageTool(newTestLogger())

	params, _ := json.Marshal(sendMessageParams{Content: "hello"})
	res, err := tool.Execute(context.Background(), params, sc)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error result when delivery fails")
	}
}

func TestSendMessageToolMetadata(t *testing.T) {
	tool := NewSendMessageTool(newTestLogger())
	if !tool.NeedsSideChannel() {
		t.Error("delivery tool must need a side channel")
	}
	if tool.NeedsResultFeedback() {
		t.Error("delivery outcome must not be fed back to the model")
	}
}
