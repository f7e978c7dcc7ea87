package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest_Defaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/products", nil)
	p := FromRequest(r)

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 0, p.Offset)
}

func TestFromRequest_Explicit(t *testing.T) {
	r := httptest.NewRequest("GET", "/products?page=3&per_page=10", nil)
	p := FromRequest(r)

	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 10, p.PerPage)
	assert.Equal(t, 20, p.Offset)
}

func TestFromRequest_ClampsOutOfRange(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"per_page too large", "?per_page=500", 1, MaxPerPage},
		{"per_page zero", "?per_page=0", 1, DefaultPerPage},
		{"per_page negative", "?per_page=-5", 1, DefaultPerPage},
		{"page zero", "?page=0", 1, DefaultPerPage},
		{"page negative", "?page=-2", 1, DefaultPerPage},
		{"non-numeric ignored", "?page=abc&per_page=xyz", 1, DefaultPerPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/products"+tt.query, nil)
			p := FromRequest(r)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPerPage, p.PerPage)
		})
	}
}

func TestClamp_BoundaryValues(t *testing.T) {
	p := Clamp(Params{Page: 2, PerPage: MaxPerPage})
	assert.Equal(t, MaxPerPage, p.PerPage)
	assert.Equal(t, MaxPerPage, p.Offset)

	p = Clamp(Params{Page: 1, PerPage: 1})
	assert.Equal(t, 1, p.PerPage)
	assert.Equal(t, 0, p.Offset)
}

func TestNewResult(t *testing.T) {
	data := []string{"a", "b", "c"}
	res := NewResult(data, 25, Params{Page: 2, PerPage: 10})

	assert.Equal(t, 25, res.TotalCount)
	assert.Equal(t, 3, res.TotalPages)
	assert.True(t, res.HasNext)
	assert.True(t, res.HasPrev)
}

func TestNewResult_LastPage(t *testing.T) {
	res := NewResult([]int{1, 2, 3, 4, 5}, 25, Params{Page: 3, PerPage: 10})

	assert.False(t, res.HasNext)
	assert.True(t, res.HasPrev)
}

func TestNewResult_Empty(t *testing.T) {
	res := NewResult([]int{}, 0, Params{Page: 1, PerPage: 20})

	assert.Equal(t, 0, res.TotalPages)
	assert.False(t, res.HasNext)
	assert.False(t, res.HasPrev)
}
