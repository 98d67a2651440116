package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}

	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Fatal("expected the single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoOnly := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	withDebug := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := newFanoutHandler(infoOnly, withDebug)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout enabled for debug when any handler accepts it")
	}

	slog.New(h).Debug("scan finished")
	if infoBuf.Len() != 0 {
		t.Fatalf("expected info handler to drop debug record, got %q", infoBuf.String())
	}
	if !strings.Contains(debugBuf.String(), "scan finished") {
		t.Fatalf("expected debug handler to receive record, got %q", debugBuf.String())
	}
}

func TestFanoutHandlerCarriesAttrsAndGroups(t *testing.T) {
	var a, b bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil))
	logger := slog.New(h).With(String(FieldComponent, "uploader")).WithGroup("stats")
	logger.Info("published", Int("count", 3))

	for name, buf := range map[string]*bytes.Buffer{"first": &a, "second": &b} {
		var payload map[string]any
		if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
			t.Fatalf("%s handler: decode %q: %v", name, buf.String(), err)
		}
		if payload[FieldComponent] != "uploader" {
			t.Fatalf("%s handler: expected component attr, got %v", name, payload)
		}
		group, ok := payload["stats"].(map[string]any)
		if !ok || group["count"] != float64(3) {
			t.Fatalf("%s handler: expected grouped count, got %v", name, payload["stats"])
		}
	}
}

func TestTeeLogger(t *testing.T) {
	var base, tee bytes.Buffer
	logger := TeeLogger(slog.New(slog.NewTextHandler(&base, nil)), slog.NewJSONHandler(&tee, nil))
	logger.Info("upload succeeded")

	if !strings.Contains(base.String(), "upload succeeded") {
		t.Fatalf("expected base output, got %q", base.String())
	}
	if !strings.Contains(tee.String(), `"msg":"upload succeeded"`) {
		t.Fatalf("expected tee output, got %q", tee.String())
	}

	var only bytes.Buffer
	TeeLogger(nil, slog.NewJSONHandler(&only, nil)).Info("nil base")
	if only.Len() == 0 {
		t.Fatal("expected output when base logger is nil")
	}
}
