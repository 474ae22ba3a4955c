package util

import (
	"bytes"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

// saveLoggerState saves the current logger state for restoration
func saveLoggerState() (io.Writer, logrus.Level, logrus.Formatter) {
	return Logger.Out, Logger.Level, Logger.Formatter
}

// restoreLoggerState restores the logger to its previous state
func restoreLoggerState(out io.Writer, level logrus.Level, formatter logrus.Formatter) {
	Logger.SetOutput(out)
	Logger.SetLevel(level)
	Logger.SetFormatter(formatter)
}

func TestSetLogLevel(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"warning", false},
		{"error", false},
		{"fatal", false},
		{"panic", false},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := SetLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestSetLogOutput(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)

	Logger.Info("test message")

	if buf.Len() == 0 {
		t.Error("Expected output to be written to buffer")
	}
}

func TestSetJSONFormat(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetJSONFormat()

	Logger.Info("test json")

	output := buf.String()
	if len(output) == 0 {
		t.Error("Expected output")
	}
	if output[0] != '{' {
		t.Errorf("Expected JSON output starting with '{', got: %s", output)
	}
}

func TestWithField(t *testing.T) {
	entry := WithField("key", "value")
	if entry == nil {
		t.Error("WithField should return non-nil entry")
	}
	if entry.Data["key"] != "value" {
		t.Errorf("expected field to be set, got %v", entry.Data)
	}
}

func TestWithFields(t *testing.T) {
	entry := WithFields(map[string]interface{}{
		"key1": "value1",
		"key2": 123,
	})
	if entry == nil {
		t.Error("WithFields should return non-nil entry")
	}
}

func TestWithVPC(t *testing.T) {
	entry := WithVPC("vpc-prod")
	if entry.Data["vpc"] != "vpc-prod" {
		t.Errorf("WithVPC should set vpc field, got %v", entry.Data)
	}
}

func TestWithSubnet(t *testing.T) {
	entry := WithSubnet("subnet-a")
	if entry.Data["subnet"] != "subnet-a" {
		t.Errorf("WithSubnet should set subnet field, got %v", entry.Data)
	}
}

func TestWithOperation(t *testing.T) {
	entry := WithOperation("create-vpc")
	if entry.Data["operation"] != "create-vpc" {
		t.Errorf("WithOperation should set operation field, got %v", entry.Data)
	}
}

func TestFormattedHelpers(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetLogLevel("debug")

	Debugf("debug %s", "msg")
	if buf.Len() == 0 {
		t.Error("Debugf should write output")
	}

	buf.Reset()
	Infof("info %s", "msg")
	if buf.Len() == 0 {
		t.Error("Infof should write output")
	}

	buf.Reset()
	Warnf("warn %s", "msg")
	if buf.Len() == 0 {
		t.Error("Warnf should write output")
	}

	buf.Reset()
	Errorf("error %s", "msg")
	if buf.Len() == 0 {
		t.Error("Errorf should write output")
	}
}
