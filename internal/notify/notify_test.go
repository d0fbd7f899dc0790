package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestMessage_JSONShape(t *testing.T) {
	n := int64(12)
	data, err := json.Marshal(Message{
		SourceFileName:   "sales_20240101.parquet",
		SourceFilePrefix: "sales",
		SourceName:       "acme",
		SplitFile:        true,
		SummaryCount:     &n,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"source_file_name":"sales_20240101.parquet","source_file_prefix":"sales","source_name":"acme","split_file":true,"summary_count":12}`
	if string(data) != want {
		t.Errorf("got  %s\nwant %s", data, want)
	}

	data, _ = json.Marshal(Message{SourceName: "acme"})
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if v, ok := decoded["summary_count"]; !ok || v != nil {
		t.Errorf("summary_count = %v, want explicit null", v)
	}
}

func TestMemQueue(t *testing.T) {
	q := &MemQueue{}
	ctx := context.Background()
	_ = q.Publish(ctx, Message{SourceFileName: "a"})
	_ = q.Publish(ctx, Message{SourceFileName: "b"})

	msgs := q.Messages()
	if len(msgs) != 2 || msgs[0].SourceFileName != "a" || msgs[1].SourceFileName != "b" {
		t.Errorf("messages = %+v", msgs)
	}

	q.Err = errors.New("queue down")
	if err := q.Publish(ctx, Message{}); err == nil {
		t.Error("expected error")
	}
}
