package hostfunc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	for v := int32(0); v <= 4; v++ {
		lvl, ok := ParseLogLevel(v)
		assert.True(t, ok)
		assert.Equal(t, LogLevel(v), lvl)
	}

	lvl, ok := ParseLogLevel(99)
	assert.False(t, ok)
	assert.Equal(t, LogInfo, lvl)

	lvl, ok = ParseLogLevel(-1)
	assert.False(t, ok)
	assert.Equal(t, LogInfo, lvl)
}

func TestParseToastLevel(t *testing.T) {
	lvl, ok := ParseToastLevel(3)
	assert.True(t, ok)
	assert.Equal(t, ToastError, lvl)

	lvl, ok = ParseToastLevel(4)
	assert.False(t, ok)
	assert.Equal(t, ToastInfo, lvl)
}

func TestParseRegion(t *testing.T) {
	regions := Regions()
	assert.Len(t, regions, 10)
	assert.Equal(t, "header", RegionHeader.String())
	assert.Equal(t, "status-bar", RegionStatusBar.String())
	assert.Equal(t, "message-area", RegionMessageArea.String())

	r, ok := ParseRegion(7)
	assert.True(t, ok)
	assert.Equal(t, RegionStatusBar, r)

	_, ok = ParseRegion(10)
	assert.False(t, ok)
	_, ok = ParseRegion(-1)
	assert.False(t, ok)
}
