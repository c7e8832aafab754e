package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/vehiclemon/pkg/display"
)

func TestIndicators(t *testing.T) {
	sink := newFakeSink()
	extra := &fakeIndicator{}
	is := Indicators{DisplaySound{Sink: sink}, extra}

	is.Alert(3)
	v, ok := sink.last(display.ObjSound, SoundPlay)
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, []int{3}, extra.alerts)

	is.Silence()
	_, ok = sink.last(display.ObjSound, SoundStop)
	assert.True(t, ok)
	assert.Equal(t, 1, extra.silenced)

	assert.NotPanics(t, func() {
		Indicators(nil).Alert(0)
		Indicators(nil).Silence()
	})
}
