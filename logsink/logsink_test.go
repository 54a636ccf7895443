package logsink_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quillfield/implicore/logsink"
)

func TestRecordingCollectsEvents(t *testing.T) {
	r := &logsink.Recording{}
	r.Infof("loaded %d functions", 3)
	r.Warningf("call %s: function %d not found", "Call1", 7)

	assert.Len(t, r.Events, 2)
	assert.Equal(t, logsink.Info, r.Events[0].Severity)
	assert.Equal(t, "loaded 3 functions", r.Events[0].Message)
	assert.Equal(t, logsink.Warning, r.Events[1].Severity)
	assert.False(t, r.Events[0].ID.IsZero())
}

func TestConsoleSinkSilentModeStillImplementsSink(t *testing.T) {
	var s logsink.Sink = logsink.NewConsoleSink(logsink.Silent)
	assert.NotPanics(t, func() {
		s.Errorf("unreachable output in silent mode")
	})
}

func TestConsoleSinkSharesCorrelationID(t *testing.T) {
	c := logsink.NewConsoleSink(logsink.Console)
	id := c.CorrelationID
	assert.False(t, id.IsZero())
}

func TestSilentSinkSatisfiesSink(t *testing.T) {
	var s logsink.Sink = logsink.SilentSink{}
	assert.NotPanics(t, func() { s.Infof("noop") })
}
