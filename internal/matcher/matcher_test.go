package matcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
)

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o644))
	}
}

func paths(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Path
	}
	return out
}

func TestFind_LexicalIgnoresCreationOrder(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "b.txt")
	time.Sleep(10 * time.Millisecond)
	writeFiles(t, root, "a.txt")

	ms, err := Find(root, []string{"*.txt"}, Options{Order: OrderLexical})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, paths(ms))
}

func TestFind_DirectoryThenName(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "img/z.png", "img/icons/a.png", "img/b.png", "img/icons/sub/c.png")

	ms, err := Find(root, []string{"img/**/*.png"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"img/b.png", "img/z.png", "img/icons/a.png", "img/icons/sub/c.png"}, paths(ms))
	assert.Equal(t, "img", ms[2].Base)
	assert.Equal(t, "icons/a.png", ms[2].Rel)
}

func TestFind_PatternOrderPreservesListOrder(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "libs/jquery.js", "libs/app.js", "libs/zepto.js")

	ms, err := Find(root, []string{"libs/zepto.js", "libs/jquery.js", "libs/*.js"}, Options{Order: OrderPattern})
	require.NoError(t, err)
	assert.Equal(t, []string{"libs/zepto.js", "libs/jquery.js", "libs/app.js"}, paths(ms))
}

func TestFind_BracesAndDedup(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "img/a.png", "img/b.jpg", "img/c.gif", "img/d.svg")

	ms, err := Find(root, []string{"img/*.{png,jpg}", "img/a.png"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"img/a.png", "img/b.jpg"}, paths(ms))
}

func TestFind_Negation(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "js/app.js", "js/app.test.js", "js/util.js")

	ms, err := Find(root, []string{"js/*.js", "!js/*.test.js"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"js/app.js", "js/util.js"}, paths(ms))
}

func TestFind_NoMatches(t *testing.T) {
	root := t.TempDir()

	_, err := Find(root, []string{"src/*.pug"}, Options{})
	assert.ErrorIs(t, err, buildErrors.ErrNoMatches)

	ms, err := Find(root, []string{"src/*.pug"}, Options{AllowEmpty: true})
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestFind_RejectsEscapingPatterns(t *testing.T) {
	_, err := Find(t.TempDir(), []string{"../secrets/*"}, Options{})
	assert.Error(t, err)
	assert.Error(t, Validate([]string{"src/[a-"}))
	assert.NoError(t, Validate([]string{"./src/**/*.scss", "!src/vendor/**"}))
}

func TestMatchPath(t *testing.T) {
	patterns := []string{"src/styles/**/*.scss", "!src/styles/vendor/**"}

	assert.True(t, MatchPath(patterns, "src/styles/main.scss"))
	assert.True(t, MatchPath(patterns, "src/styles/utils/sprite.scss"))
	assert.False(t, MatchPath(patterns, "src/styles/vendor/reset.scss"))
	assert.False(t, MatchPath(patterns, "src/js/app.js"))
	assert.True(t, MatchPath([]string{"./src/*.css"}, "src/site.css"))
}

func TestStaticBase(t *testing.T) {
	assert.Equal(t, "src/img", StaticBase("src/img/**/*.png"))
	assert.Equal(t, ".", StaticBase("*.txt"))
	assert.Equal(t, "src/libs", StaticBase("src/libs/jquery.js"))
	assert.Equal(t, "src", StaticBase("!src/*.js"))
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("pattern")
	require.NoError(t, err)
	assert.Equal(t, OrderPattern, o)

	o, err = ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderLexical, o)

	_, err = ParseOrder("mtime")
	assert.Error(t, err)
}
