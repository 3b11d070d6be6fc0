package frames

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderRing(t *testing.T) {
	r := NewRecorder(3)

	for i := 0; i < 5; i++ {
		r.Record("src", "out", "int", i)
	}

	recent := r.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "2", recent[0].Summary)
	assert.Equal(t, "4", recent[2].Summary)
	assert.Equal(t, "src", recent[0].Node)
	assert.Equal(t, "out", recent[0].Slot)
	assert.NotZero(t, recent[0].Timestamp)
}

func TestRecorderPartialFill(t *testing.T) {
	r := NewRecorder(8)
	r.Record("a", "out", "str", "hello")

	recent := r.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "hello", recent[0].Summary)
	assert.Equal(t, 5, recent[0].SizeBytes)
}

func TestRecorderNilSafe(t *testing.T) {
	var r *Recorder
	r.Record("a", "out", "int", 1)
	assert.Nil(t, r.Recent())
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "bytes[4]", summarize([]byte("abcd")))
	assert.Equal(t, "42", summarize(42))

	long := strings.Repeat("x", 500)
	s := summarize(long)
	assert.Less(t, len(s), 200)
	assert.True(t, strings.HasSuffix(s, "…"))

	assert.Equal(t, "1s", summarize(fmt.Stringer(durationStringer{})))
}

func TestSummarizeTruncatesOnRuneBoundary(t *testing.T) {
	// Three-byte runes that do not align with the byte limit.
	s := summarize(strings.Repeat("日", 100))
	assert.True(t, utf8.ValidString(s))
	assert.True(t, strings.HasSuffix(s, "…"))
	assert.Equal(t, "日", string([]rune(s)[0]))
}

type durationStringer struct{}

func (durationStringer) String() string { return "1s" }
