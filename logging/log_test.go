package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestProgressFormatter(t *testing.T) {
	out := &bytes.Buffer{}
	logger := New(out, false)

	logger.Info("Uploading..")
	logger.Warn("dataset left behind")
	logger.WithField("status", 500).Error("request failed")
	logger.Debug("not shown without debug")

	assert.Equal(t, "Uploading..\nWARNING: dataset left behind\nERROR: request failed status=500\n", out.String())
}

func TestDebugRecords(t *testing.T) {
	out := &bytes.Buffer{}
	logger := New(out, true)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithFields(logrus.Fields{"path": "histories", "method": "GET"}).Debug("galaxy request")
	assert.Contains(t, out.String(), " - DEBUG - galaxy request method=GET path=histories\n")
}
