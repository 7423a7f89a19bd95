package urllist

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mccutchen/redirectmap"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		given   string
		wantErr bool
		errIs   error
	}{
		"http":              {given: "http://a.example/"},
		"https with query":  {given: "https://a.example/path?q=1"},
		"port":              {given: "http://a.example:8080/"},
		"relative":          {given: "path/to/foo", wantErr: true, errIs: ErrNotAbsolute},
		"missing hostname":  {given: "https:///path/to/foo", wantErr: true, errIs: ErrNoHost},
		"non http scheme":   {given: "ftp://a.example/", wantErr: true, errIs: ErrBadScheme},
		"mailto":            {given: "mailto:someone@example.com", wantErr: true, errIs: ErrBadScheme},
		"bad escape":        {given: "http://a.example/%zz", wantErr: true},
		"unparseable chars": {given: "%%", wantErr: true},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			u, err := Parse(tc.given)
			if !tc.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tc.given, u.String())
				return
			}

			require.Error(t, err)
			var inputErr *redirectmap.InputError
			assert.True(t, errors.As(err, &inputErr), "expected *InputError, got %T", err)
			if tc.errIs != nil {
				assert.True(t, errors.Is(err, tc.errIs), "expected %v, got %v", tc.errIs, err)
			}
		})
	}
}

func TestParseAll(t *testing.T) {
	t.Parallel()

	urls, err := ParseAll([]string{"http://a.example/", "http://b.example/", "http://a.example/"})
	require.NoError(t, err)
	assert.Len(t, urls, 3)

	_, err = ParseAll([]string{"http://a.example/", "nope"})
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()

		input := strings.Join([]string{
			"# links from the newsletter",
			"http://a.example/",
			"",
			"   https://b.example/path   ",
			"\thttp://a.example/",
		}, "\n")
		urls, err := Read(strings.NewReader(input))
		require.NoError(t, err)

		got := make([]string, len(urls))
		for i, u := range urls {
			got[i] = u.String()
		}
		assert.Equal(t, []string{"http://a.example/", "https://b.example/path", "http://a.example/"}, got)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		urls, err := Read(strings.NewReader("\n\n"))
		require.NoError(t, err)
		assert.Empty(t, urls)
	})

	t.Run("invalid line is fatal", func(t *testing.T) {
		t.Parallel()

		_, err := Read(strings.NewReader("http://a.example/\nnot-a-url\nhttp://b.example/\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
		assert.True(t, errors.Is(err, ErrNotAbsolute))
	})
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "urls.txt")
		require.NoError(t, os.WriteFile(path, []byte("http://a.example/\nhttp://b.example/\n"), 0o600))

		urls, err := ReadFile(path)
		require.NoError(t, err)
		assert.Len(t, urls, 2)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
		require.Error(t, err)
		var inputErr *redirectmap.InputError
		assert.True(t, errors.As(err, &inputErr))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}
