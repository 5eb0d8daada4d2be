package dto

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPage_Links(t *testing.T) {
	base, err := url.Parse("https://api.myhomebro.com/api/invoices/?status=pending&page=2")
	require.NoError(t, err)

	p := NewPage([]int{1, 2}, 45, 2, 20, base)
	assert.Equal(t, 45, p.Count)
	require.NotNil(t, p.Next)
	require.NotNil(t, p.Previous)
	assert.Contains(t, *p.Next, "page=3")
	assert.Contains(t, *p.Next, "status=pending")
	assert.Contains(t, *p.Previous, "page=1")
}

func TestNewPage_LastPage(t *testing.T) {
	base, _ := url.Parse("/api/agreements/")

	p := NewPage[int](nil, 3, 1, 20, base)
	assert.Nil(t, p.Next)
	assert.Nil(t, p.Previous)
	assert.NotNil(t, p.Results)
	assert.Empty(t, p.Results)
}
