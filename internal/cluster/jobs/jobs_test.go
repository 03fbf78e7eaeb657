package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPage struct {
	url  string
	html string
}

func (p stubPage) URL() string             { return p.url }
func (p stubPage) HTML() (string, error)   { return p.html, nil }
func (p stubPage) Markdown() (string, error) { return p.html, nil }

func TestBrowserProviderJobPayloadRoundTrips(t *testing.T) {
	job := NewBrowserProviderJob("job-1", "https://a.test/", true)
	raw, err := job.Payload()
	require.NoError(t, err)

	decoded, err := DecodeBrowserProviderJob("job-1", true, raw)
	require.NoError(t, err)
	bp, ok := decoded.(*BrowserProviderJob)
	require.True(t, ok)
	assert.Equal(t, "job-1", bp.ID())
	assert.True(t, bp.NeverEnding())
	assert.Equal(t, "https://a.test/", bp.resource)
}

func TestResourceExplorationJobForwardSharesParentID(t *testing.T) {
	job := NewResourceExplorationJob("job-2", "https://a.test/", 3)
	child := job.Forward("https://a.test/child")
	assert.Equal(t, job.ID(), child.ID())
	assert.False(t, child.NeverEnding())
}

func TestResourceExplorationJobPayloadRoundTripsMaxDepth(t *testing.T) {
	job := NewResourceExplorationJob("job-3", "https://a.test/", 7)
	raw, err := job.Payload()
	require.NoError(t, err)

	decoded, err := DecodeResourceExplorationJob("job-3", false, raw)
	require.NoError(t, err)
	rj, ok := decoded.(*ResourceExplorationJob)
	require.True(t, ok)
	assert.Equal(t, 7, rj.maxDepth)
}

func TestDiscoverLinksFiltersToSameOriginAnchors(t *testing.T) {
	html := `<html><body>
		<a href="/a">local</a>
		<a href="https://a.test/b">same host absolute</a>
		<a href="https://other.test/c">other host</a>
	</body></html>`

	links, err := discoverLinks(stubPage{url: "https://a.test/", html: html})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://a.test/a", "https://a.test/b"}, links)
}

func TestTaintTraceJobPayloadRoundTrips(t *testing.T) {
	job := NewTaintTraceJob("job-4", "https://a.test/", "#input", "input", "<script>")
	raw, err := job.Payload()
	require.NoError(t, err)

	decoded, err := DecodeTaintTraceJob("job-4", false, raw)
	require.NoError(t, err)
	tj, ok := decoded.(*TaintTraceJob)
	require.True(t, ok)
	assert.Equal(t, "<script>", tj.marker)
}
