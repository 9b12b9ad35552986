package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/weiawesome/wes-io-messenger/pkg/log"
)

func TestLogWithDetail(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: "info"}, &buf)
	ctx := log.WithLogger(context.Background(), logger)

	LogWithDetail(ctx, ActionCallEnd, "u1", "call-1", "video", "call ended")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	want := map[string]string{
		log.FieldLogType: log.LogTypeAudit,
		FieldAction:      ActionCallEnd,
		log.FieldUserID:  "u1",
		FieldTargetID:    "call-1",
		FieldDetail:      "video",
		"message":        "call ended",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}
}
