package render

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongdm/errhero/pkg/errhero"
)

func TestRender_DefaultsWithLayout(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.True(t, r.Has("layout/layout"))
	assert.True(t, r.Has("errhero/error-default"))

	r.SetLayout("layout/layout")
	out, err := r.Render("errhero/error-default")
	require.NoError(t, err)

	assert.Contains(t, out, "<title>Error")
	assert.Contains(t, out, "<p>We have encountered a problem and we can not fulfill your request")
	assert.Contains(t, out, "<h1>Internal Server Error</h1>")
	assert.NotContains(t, out, "&lt;h1&gt;", "content is not escaped twice")
}

func TestRender_WithoutLayout(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	out, err := r.Render("errhero/error-default")
	require.NoError(t, err)
	assert.NotContains(t, out, "<html")
	assert.True(t, strings.HasPrefix(out, "<h1>"))
}

func TestRender_Unknown(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	_, err = r.Render("missing/view")
	assert.ErrorContains(t, err, `"missing/view" not found`)

	r.SetLayout("missing/layout")
	_, err = r.Render("errhero/error-default")
	assert.ErrorContains(t, err, `"missing/layout" not found`)
}

func TestWithFS_OverridesAndData(t *testing.T) {
	fsys := fstest.MapFS{
		"layout/layout.html": {Data: []byte(`<html><title>Error | {{ .AppName | upper }}</title>{{ .Content }}</html>`)},
		"shop/oops.html":     {Data: []byte(`<p>{{ .Support }}</p>`)},
		"shop/readme.txt":    {Data: []byte(`ignored`)},
	}
	r, err := New(WithFS(fsys), WithData(map[string]any{"AppName": "shop", "Support": "<b>call us</b>"}))
	require.NoError(t, err)
	assert.False(t, r.Has("shop/readme"))

	r.SetLayout("layout/layout")
	out, err := r.Render("shop/oops")
	require.NoError(t, err)
	assert.Equal(t, `<html><title>Error | SHOP</title><p>&lt;b&gt;call us&lt;/b&gt;</p></html>`, out)
}

func TestNew_ParseError(t *testing.T) {
	_, err := New(WithFS(fstest.MapFS{"bad.html": {Data: []byte(`{{ .Broken `)}}))
	assert.ErrorContains(t, err, "parse template bad.html")
}

func TestRender_Concurrent(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.SetLayout("layout/layout")
			_, err := r.Render("errhero/error-default")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestRenderer_WithMiddleware(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	cfg := errhero.Config{Enabled: true}
	cfg.Display.Template = errhero.Template{Layout: "layout/layout", View: "errhero/error-default"}
	h := errhero.New(cfg, nil, r).Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<title>Error")
	assert.Contains(t, rec.Body.String(), "We have encountered a problem")
}
