package log

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prevLog, prevBase := log, baseLogger
	baseLogger = zap.New(core)
	log = baseLogger.Sugar()
	t.Cleanup(func() { log, baseLogger = prevLog, prevBase })
	return logs
}

func TestHelpersBeforeInit(t *testing.T) {
	prevLog, prevBase := log, baseLogger
	log, baseLogger = nil, nil
	t.Cleanup(func() { log, baseLogger = prevLog, prevBase })

	Debugf("debug %d", 1)
	if GetSugaredLogger() == nil {
		t.Fatal("GetSugaredLogger() = nil before Init")
	}
	if GetZapLogger() == nil {
		t.Fatal("GetZapLogger() = nil before Init")
	}
}

func TestHelpersWriteThroughPackageLogger(t *testing.T) {
	logs := observe(t)

	Debug("loading")
	Infof("stored %d readings", 24)
	Errorw("dataset could not be prepared", "dataset", "gist")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	tests := []struct {
		level   zapcore.Level
		message string
	}{
		{zapcore.DebugLevel, "loading"},
		{zapcore.InfoLevel, "stored 24 readings"},
		{zapcore.ErrorLevel, "dataset could not be prepared"},
	}
	for i, tt := range tests {
		if entries[i].Level != tt.level || entries[i].Message != tt.message {
			t.Errorf("entry %d = %v %q, want %v %q", i, entries[i].Level, entries[i].Message, tt.level, tt.message)
		}
	}
	if got := entries[2].ContextMap()["dataset"]; got != "gist" {
		t.Errorf("dataset field = %v, want gist", got)
	}
}

func TestForSite(t *testing.T) {
	logs := observe(t)

	ForSite("miryang-a").Infow("site reconciled", "rows", 21)

	entries := logs.FilterField(zap.String("site", "miryang-a")).All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries with the site field, want 1", len(entries))
	}
	if entries[0].Message != "site reconciled" {
		t.Errorf("message = %q", entries[0].Message)
	}
}
