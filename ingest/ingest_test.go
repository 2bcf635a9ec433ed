package ingest

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/kbgov/corpus"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https allowed", "https://example.com/docs", false},
		{"http rejected", "http://example.com", true},
		{"localhost rejected", "https://localhost/x", true},
		{"loopback rejected", "https://127.0.0.1/x", true},
		{"private ip rejected", "https://10.0.0.5/x", true},
		{"local domain rejected", "https://printer.local/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_AppliesFetchSettings(t *testing.T) {
	i := New(corpus.New(t.TempDir(), nil),
		WithTimeout(5*time.Second),
		WithMaxBodySize(64))

	assert.Equal(t, int64(64), i.fetcher.maxBodySize)
	assert.Equal(t, 5*time.Second, i.fetcher.client.Timeout)
}

func TestNew_ZeroSettingsUseDefaults(t *testing.T) {
	i := New(corpus.New(t.TempDir(), nil))

	assert.Equal(t, int64(defaultMaxBodySize), i.fetcher.maxBodySize)
	assert.Equal(t, defaultTimeout, i.fetcher.client.Timeout)
}

func TestReadBody_RejectsOversizedBody(t *testing.T) {
	_, err := readBody(strings.NewReader(strings.Repeat("a", 100)), 64)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")

	body, err := readBody(strings.NewReader("small"), 64)
	require.NoError(t, err)
	assert.Equal(t, []byte("small"), body)
}

func TestSlug(t *testing.T) {
	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://www.tradingview.com/pine-script-docs/language/", "www-tradingview-com-pine-script-docs-language"},
		{"https://example.com/", "example-com"},
		{"https://example.com/A/B?query=1", "example-com-a-b"},
	}

	for _, tt := range tests {
		u, err := url.Parse(tt.rawURL)
		require.NoError(t, err)
		assert.Equal(t, tt.want, Slug(u))
	}
}

func TestConvert_ExtractsTitleAndMarkdown(t *testing.T) {
	html := `<html><head><title>RSI Guide</title></head><body>
<article>
<h1>RSI Guide</h1>
<p>The relative strength index measures momentum. It uses a fourteen bar lookback by default and is bounded between zero and one hundred, which makes overbought and oversold thresholds easy to define.</p>
<p>Most charting platforms ship it as a built-in. The default thresholds of seventy and thirty date back to Wilder's original publication and remain the common convention in technical analysis texts.</p>
</article>
</body></html>`

	u, err := url.Parse("https://example.com/rsi")
	require.NoError(t, err)

	result, err := NewConverter().Convert([]byte(html), u)
	require.NoError(t, err)
	assert.Equal(t, "RSI Guide", result.Title)
	assert.Contains(t, result.Markdown, "relative strength index")
}

func TestExtractHTMLTitle(t *testing.T) {
	assert.Equal(t, "Hello", extractHTMLTitle([]byte("<html><head><title>Hello</title></head><body></body></html>")))
	assert.Equal(t, "", extractHTMLTitle([]byte("<html><body>no title</body></html>")))
}
