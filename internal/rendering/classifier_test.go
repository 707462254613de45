package rendering

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seolytics/aeo-audit/internal/audit"
)

func TestClassifyEmptyMountPointIsCSR(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>App</title></head><body><div id="root"></div><script src="/bundle.js"></script></body></html>`

	result := New().Classify(html)

	require.Equal(t, audit.RenderingCSR, result.Mode)
	require.GreaterOrEqual(t, result.Confidence, 70)
	require.NotEmpty(t, result.Indicators)
}

func TestClassifyRichPreScriptContentIsSSR(t *testing.T) {
	t.Parallel()

	para := strings.Repeat("meaningful server rendered words flow here ", 35)
	html := `<html><body><main><h1>A Real Article</h1><h2>Background</h2><p>` + para + `</p></main><script src="/analytics.js"></script></body></html>`

	result := New().Classify(html)

	require.Equal(t, audit.RenderingSSR, result.Mode)
	require.GreaterOrEqual(t, result.Confidence, 70)
}

func TestClassifyMixedSignalsIsHybrid(t *testing.T) {
	t.Parallel()

	para := strings.Repeat("some prose before hydration kicks in on this page ", 8)
	html := `<html><body><div id="app"><p>` + para + `</p></div><script src="/hydrate.js"></script></body></html>`

	result := New().Classify(html)

	// Mount point is populated, so the CSR mount signal never fires; the
	// page has moderate content. This should not be a confident CSR call.
	require.NotEqual(t, audit.RenderingCSR, result.Mode)
}

func TestClassifyNoScriptsWarns(t *testing.T) {
	t.Parallel()

	result := New().Classify(`<html><body><p>Plain static page with a little text on it.</p></body></html>`)

	require.NotEmpty(t, result.Warnings)
}

func TestClassifyConfidenceBounds(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"<html><body></body></html>",
		`<html><body><div id="root"></div><div class="spinner"></div>Loading...<script></script></body></html>`,
		`<html><body><main><h1>Big</h1><p>` + strings.Repeat("words and more words ", 40) + `</p></main></body></html>`,
	}
	for _, html := range cases {
		result := New().Classify(html)
		require.GreaterOrEqual(t, result.Confidence, 0)
		require.LessOrEqual(t, result.Confidence, 100)
		require.Contains(t, []audit.RenderingMode{
			audit.RenderingSSR, audit.RenderingCSR, audit.RenderingHybrid,
		}, result.Mode)
	}
}
