package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProject(t *testing.T) {
	name, site, err := ValidateProject("  Blog ", " HTTPS://Blog.Example.com/posts#top ")
	require.NoError(t, err)
	assert.Equal(t, "Blog", name)
	assert.Equal(t, "https://blog.example.com/posts", site)
}

func TestValidateProjectErrors(t *testing.T) {
	tests := []struct {
		name, url string
		want      error
	}{
		{"", "https://example.com", ErrNameRequired},
		{strings.Repeat("x", MaxProjectNameLength+1), "https://example.com", ErrNameTooLong},
		{"Site", "", ErrURLRequired},
		{"Site", "example.com", ErrURLInvalid},
		{"Site", "ftp://example.com", ErrURLInvalid},
		{"Site", "https://", ErrURLInvalid},
		{"Site", "://bad", ErrURLInvalid},
	}
	for _, tt := range tests {
		_, _, err := ValidateProject(tt.name, tt.url)
		assert.ErrorIs(t, err, tt.want, tt.url)
	}
}
