//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

package log

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestSetLevel verifies that SetLevel correctly updates the underlying
// zap atomic level according to the provided level string, including
// the fallback branch for unknown levels.
func TestSetLevel(t *testing.T) {
	cases := []struct {
		in       string
		expected zapcore.Level
	}{
		{LevelDebug, zapcore.DebugLevel},
		{LevelInfo, zapcore.InfoLevel},
		{LevelWarn, zapcore.WarnLevel},
		{LevelError, zapcore.ErrorLevel},
		{LevelFatal, zapcore.FatalLevel},
		{"unknown", zapcore.InfoLevel}, // default branch
	}

	for _, c := range cases {
		SetLevel(c.in)
		if got := zapLevel.Level(); got != c.expected {
			t.Fatalf("SetLevel(%q) = %v; want %v", c.in, got, c.expected)
		}
	}
}

type stubLogger struct {
	infofCalls  int
	errorfCalls int
}

func (s *stubLogger) Debug(args ...any)                 {}
func (s *stubLogger) Debugf(format string, args ...any) {}
func (s *stubLogger) Info(args ...any)                  {}
func (s *stubLogger) Infof(format string, args ...any)  { s.infofCalls++ }
func (s *stubLogger) Warn(args ...any)                  {}
func (s *stubLogger) Warnf(format string, args ...any)  {}
func (s *stubLogger) Error(args ...any)                 {}
func (s *stubLogger) Errorf(format string, args ...any) { s.errorfCalls++ }
func (s *stubLogger) Fatal(args ...any)                 {}
func (s *stubLogger) Fatalf(format string, args ...any) {}

// TestPackageHelpersDelegate ensures the package-level helpers forward
// to the Default logger.
func TestPackageHelpersDelegate(t *testing.T) {
	stub := &stubLogger{}
	oldDefault := Default
	Default = stub
	t.Cleanup(func() { Default = oldDefault })

	Infof("hello %s", "world")
	Errorf("boom %d", 1)

	if stub.infofCalls != 1 || stub.errorfCalls != 1 {
		t.Fatalf("helpers did not delegate: infof=%d errorf=%d", stub.infofCalls, stub.errorfCalls)
	}
}
