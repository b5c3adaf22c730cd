package logging

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, logrus.DebugLevel)

	Info("drain completed", map[string]interface{}{"applied": 3, "reason": "retry tick"})
	Error("push failed", stderrors.New("connection refused"), map[string]interface{}{"op_id": "abc"})
	Debug("probe result", map[string]interface{}{"online": true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("log lines = %d, want 3", len(lines))
	}

	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first line is not JSON: %v", err)
	}
	if first["msg"] != "drain completed" {
		t.Errorf("msg = %v, want drain completed", first["msg"])
	}
	if first["applied"] != float64(3) {
		t.Errorf("applied = %v, want 3", first["applied"])
	}
	if first["level"] != "info" {
		t.Errorf("level = %v, want info", first["level"])
	}

	var second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("second line is not JSON: %v", err)
	}
	if second["error"] != "connection refused" {
		t.Errorf("error = %v, want the wrapped cause", second["error"])
	}
	if second["op_id"] != "abc" {
		t.Errorf("op_id = %v, want abc", second["op_id"])
	}
}
