package utils

import (
	"testing"
	"time"

	"github.com/magiconair/properties/assert"
)

func TestStatAppendAndClear(t *testing.T) {
	st := NewStat("127.0.0.1:6001")
	assert.Equal(t, 0, st.Count())
	st.Append(time.Millisecond)
	st.Append(2 * time.Millisecond)
	assert.Equal(t, 2, st.Count())
	st.Log()
	st.Clear()
	assert.Equal(t, 0, st.Count())
	st.Log()
}

func TestPercentile(t *testing.T) {
	sorted := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(6), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile([]int{1}, 50))
}
