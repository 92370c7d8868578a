package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, Page{Page: 1, PerPage: DefaultPerPage}, Page{}.Normalize())
	assert.Equal(t, Page{Page: 3, PerPage: MaxPerPage}, Page{Page: 3, PerPage: 1000}.Normalize())
}

func TestMeta(t *testing.T) {
	m := Page{Page: 2, PerPage: 10}.Meta(25)
	assert.Equal(t, int64(3), m.TotalPages)
	assert.Equal(t, int64(25), m.Total)
	assert.Equal(t, int64(0), Page{}.Meta(0).TotalPages)
}
