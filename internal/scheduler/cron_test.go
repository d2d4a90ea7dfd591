package scheduler

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestReevaluateSchedulesOncePerShow(t *testing.T) {
	s := NewScheduler(nil, nil, nil, nil, 24, quietLogger())

	s.Reevaluate(1)
	s.Reevaluate(1)
	s.Reevaluate(2)

	s.mu.Lock()
	assert.Len(t, s.pending, 2)
	s.mu.Unlock()

	s.Stop()

	s.mu.Lock()
	assert.Empty(t, s.pending)
	s.mu.Unlock()
}

func TestReevaluateAfterStopIsIgnored(t *testing.T) {
	s := NewScheduler(nil, nil, nil, nil, 24, quietLogger())
	s.Stop()

	s.Reevaluate(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.pending)
}

func TestRecheckInterval(t *testing.T) {
	s := NewScheduler(nil, nil, nil, nil, 6, quietLogger())
	defer s.Stop()
	assert.Equal(t, "6h0m0s", s.recheck.String())
}
