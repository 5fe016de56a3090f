package paginate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageURL(t *testing.T) {
	tests := []struct {
		name    string
		current string
		n       int
		want    string
	}{
		{"query parameter", "https://shop.example/c/tools?page=1", 3, "https://shop.example/c/tools?page=3"},
		{"wordpress paged keeps order", "https://shop.example/?s=rope&paged=2&post_type=product", 5, "https://shop.example/?s=rope&paged=5&post_type=product"},
		{"short pg parameter", "https://shop.example/list?pg=4&sort=price", 2, "https://shop.example/list?pg=2&sort=price"},
		{"wordpress post id is not a page", "https://shop.example/?p=123", 2, "https://shop.example/page/2/?p=123"},
		{"path segment", "https://shop.example/shop/page/2/", 3, "https://shop.example/shop/page/3/"},
		{"path segment with query", "https://shop.example/shop/page/2/?orderby=price", 7, "https://shop.example/shop/page/7/?orderby=price"},
		{"path segment without trailing slash", "https://shop.example/shop/page/2", 4, "https://shop.example/shop/page/4"},
		{"append before trailing slash", "https://shop.example/shop/", 2, "https://shop.example/shop/page/2/"},
		{"append after path", "https://shop.example/category/rope", 2, "https://shop.example/category/rope/page/2/"},
		{"append on bare host", "https://shop.example", 2, "https://shop.example/page/2/"},
		{"append keeps query", "https://shop.example/shop/?orderby=date", 2, "https://shop.example/shop/page/2/?orderby=date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PageURL(tt.current, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageURL_SameTargetFromAnyPage(t *testing.T) {
	starts := []string{
		"https://shop.example/shop/",
		"https://shop.example/shop",
		"https://shop.example/c/tools?page=1",
		"https://shop.example/?paged=1&s=oak",
	}
	for _, start := range starts {
		fromFirst, err := PageURL(start, 3)
		require.NoError(t, err)

		second, err := PageURL(start, 2)
		require.NoError(t, err)
		fromSecond, err := PageURL(second, 3)
		require.NoError(t, err)

		assert.Equal(t, fromFirst, fromSecond, "start %s", start)

		again, err := PageURL(fromFirst, 3)
		require.NoError(t, err)
		assert.Equal(t, fromFirst, again, "start %s", start)
	}
}

func TestPageURL_Invalid(t *testing.T) {
	_, err := PageURL("https://shop.example/", 0)
	assert.Error(t, err)

	_, err = PageURL("://bad", 2)
	assert.Error(t, err)
}
