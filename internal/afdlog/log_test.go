package afdlog

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func captureLogger() (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := logrus.New()
	l.SetOutput(buf)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l, buf
}

func TestInfofIncludesEntityAndMessage(t *testing.T) {
	l, buf := captureLogger()
	SetLogger(l)
	defer SetLogger(logrus.StandardLogger())

	Infof("dir_check", "processed %d files", 3)
	require.Contains(t, buf.String(), "dir_check: processed 3 files")
}

func TestWarnfAtWarnLevel(t *testing.T) {
	l, buf := captureLogger()
	SetLogger(l)
	defer SetLogger(logrus.StandardLogger())

	Warnf("sweeper", "skipping %s", "old.dat")
	require.Contains(t, buf.String(), "level=warning")
	require.Contains(t, buf.String(), "sweeper: skipping old.dat")
}

func TestErrorfAtErrorLevel(t *testing.T) {
	l, buf := captureLogger()
	SetLogger(l)
	defer SetLogger(logrus.StandardLogger())

	Errorf("sampler", "stat file corrupt")
	require.Contains(t, buf.String(), "level=error")
}
