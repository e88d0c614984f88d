package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePage(t *testing.T) {
	assert.Equal(t, 1, ParsePage(""))
	assert.Equal(t, 1, ParsePage("abc"))
	assert.Equal(t, 1, ParsePage("1.5"))
	assert.Equal(t, 3, ParsePage("3"))
	assert.Equal(t, -2, ParsePage("-2"))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 1, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(1, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 2, TotalPages(11, 10))
	assert.Equal(t, 2, TotalPages(13, 10))
	assert.Equal(t, 3, TotalPages(21, 10))
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name       string
		requested  int
		totalItems int64
		wantNumber int
		wantOffset int
	}{
		{"first page", 1, 25, 1, 0},
		{"middle page", 2, 25, 2, 10},
		{"last page", 3, 25, 3, 20},
		{"past the end clamps to last", 99, 25, 3, 20},
		{"zero clamps to last", 0, 25, 3, 20},
		{"negative clamps to last", -5, 25, 3, 20},
		{"empty sequence has one page", 1, 0, 1, 0},
		{"empty sequence out of range", 7, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			number, offset := Clamp(tt.requested, tt.totalItems, PostsPerPage)
			assert.Equal(t, tt.wantNumber, number)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestPageNavigation(t *testing.T) {
	p := New([]string{"a", "b"}, 2, PostsPerPage, 25)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext())
	assert.True(t, p.HasPrev())

	first := New([]string{"a"}, 1, PostsPerPage, 5)
	assert.False(t, first.HasNext())
	assert.False(t, first.HasPrev())

	last := New([]string{"a"}, 3, PostsPerPage, 25)
	assert.False(t, last.HasNext())
	assert.True(t, last.HasPrev())
}
