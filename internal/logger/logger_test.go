package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithComponent(t *testing.T) {
	l, err := New(Options{Level: "debug"})
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, l.GetLevel())

	var buf bytes.Buffer
	l.SetOutput(&buf)
	WithComponent(l, "chain").WithField("code", "005930").Info("resolved")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "chain", line["component"])
	require.Equal(t, "005930", line["code"])
	require.Equal(t, "resolved", line["message"])
}

func TestNew_InvalidSettings(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	require.Error(t, err)

	_, err = New(Options{Format: "xml"})
	require.Error(t, err)
}

func TestNew_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quoteproxy.log")
	l, err := New(Options{Format: "text", File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	l.Info("hello")
	require.FileExists(t, path)
}

func TestOrDiscard(t *testing.T) {
	require.NotNil(t, OrDiscard(nil))
	e := Discard()
	require.Same(t, e, OrDiscard(e))
}
