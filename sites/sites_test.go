package sites

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"datasetscraper/downloader"
	"datasetscraper/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchTermPrefix(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"plus separated", "https://www.google.com/search?q=foggy+town&udm=2", "foggy_town"},
		{"punctuation dropped", "https://www.bing.com/images/search?q=a%2Fb+c%21", "ab_c"},
		{"cut to twenty", "https://www.google.com/search?q=the+quick+brown+fox+jumps+over&tbm=isch", "the_quick_brown_fox"},
		{"unicode kept", "https://www.google.com/search?q=caf%C3%A9+au+lait&udm=2", "café_au_lait"},
		{"no query", "https://www.google.com/search?udm=2", "fallback"},
		{"only symbols", "https://www.google.com/search?q=%21%21%21", "fallback"},
		{"bad url", "://nope", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SearchTermPrefix(tt.url, "fallback"))
		})
	}
}

func TestRegistry_Detect(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		url      string
		wantName string
		wantMode models.Mode
	}{
		{"https://www.google.com/search?q=cats&tbm=isch", "google", models.ModeSearch},
		{"https://www.google.co.uk/search?q=cats&udm=2", "google", models.ModeSearch},
		{"https://images.google.de/images?q=cats", "google", models.ModeSearch},
		{"https://www.google.com/search?q=cats", "generic", models.ModeGeneric},
		{"https://google.evil.com/search?q=cats&tbm=isch", "generic", models.ModeGeneric},
		{"https://www.google.example.co.uk/search?q=cats&udm=2", "generic", models.ModeGeneric},
		{"https://images.google.evil.com/images?q=cats", "generic", models.ModeGeneric},
		{"https://www.bing.com/images/search?q=cats", "bing", models.ModeSearch},
		{"https://www.bing.com/search?q=cats", "generic", models.ModeGeneric},
		{"https://notbing.com/images/x", "generic", models.ModeGeneric},
		{"https://example.com/gallery?q=cats&udm=2", "generic", models.ModeGeneric},
		{"not a url", "generic", models.ModeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			site := r.Detect(tt.url)
			assert.Equal(t, tt.wantName, site.Name)
			assert.Equal(t, tt.wantMode, site.Mode)
		})
	}
}

func TestRegistry_ResolveOverride(t *testing.T) {
	r := DefaultRegistry()
	google := "https://www.google.com/search?q=cats&udm=2"

	assert.Equal(t, "generic", r.Resolve(google, models.ModeGeneric).Name())
	assert.Equal(t, "google", r.Resolve(google, models.ModeSearch).Name())
	assert.Equal(t, "google", r.Resolve(google, models.ModeAuto).Name())

	forced := r.Resolve("https://search.example.org/?q=red+fox", models.ModeSearch)
	assert.Equal(t, "search", forced.Name())
	assert.Equal(t, models.ModeSearch, forced.Mode())
	assert.Equal(t, "red_fox", forced.FilenamePrefix("https://search.example.org/?q=red+fox"))
	assert.NotEmpty(t, forced.Matchers())
}

func TestRegistry_List(t *testing.T) {
	var names []string
	for _, s := range DefaultRegistry().List() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"google", "bing", "generic"}, names)
}

func TestSitePrefixes(t *testing.T) {
	assert.Equal(t, "google_images", (&GoogleImagesSite{}).FilenamePrefix("https://www.google.com/search?udm=2"))
	assert.Equal(t, "bing_images", (&BingImagesSite{}).FilenamePrefix("https://www.bing.com/images/search"))
	assert.Equal(t, downloader.DefaultFilenamePrefix, (&GenericSite{}).FilenamePrefix("https://example.com/?q=cats"))
}

func TestBingMatchersPreferOriginals(t *testing.T) {
	matchers := (&BingImagesSite{}).Matchers()
	require.NotEmpty(t, matchers)
	assert.Equal(t, "original-key", matchers[0].Name())
	assert.Len(t, matchers, 5)
}

func TestSiteFilters(t *testing.T) {
	assert.False(t, (&BingImagesSite{}).Filter().Allow("https://tse1.mm.bing.net/th?id=OIP.abc&pid=Api"))
	assert.True(t, (&BingImagesSite{}).Filter().Allow("https://upload.example.org/photos/fox.jpg"))
	assert.False(t, (&GoogleImagesSite{}).Filter().Allow("https://www.gstatic.com/images/branding/product/1x/gsa_64dp.png"))
}

type fixedPage struct {
	html string
}

func (f fixedPage) FetchPage(ctx context.Context, pageURL string) (string, error) {
	return f.html, nil
}

func TestManagerWithRegistry_GoogleSearchSession(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	// Result data escaped the way Google embeds it in script blocks
	page := `<html><head><title>foggy town - Google Search</title></head><body>
<img src="data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAE=">
<script>AF_initDataCallback({data:[`
	for i := 1; i <= 4; i++ {
		page += fmt.Sprintf(`{"ou":"%s\/originals\/town%d.jpg"},`, srv.URL, i)
	}
	page += `]});</script></body></html>`

	dir := t.TempDir()
	client, err := downloader.NewHTTPClient()
	require.NoError(t, err)

	m, err := downloader.NewManager(downloader.GalleryConfig{
		PageURL:   "https://www.google.com/search?q=foggy+town&udm=2",
		OutputDir: dir,
		Count:     3,
	},
		downloader.WithPageFetcher(fixedPage{html: page}),
		downloader.WithImageFetcher(client),
		downloader.WithSiteResolver(DefaultRegistry()),
	)
	require.NoError(t, err)

	session, err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Google Images", session.Site)
	assert.Equal(t, models.ModeSearch, session.Mode)
	assert.Equal(t, models.StopTargetReached, session.StopReason)
	assert.Equal(t, 4, session.Candidates)
	assert.Equal(t, 3, session.Succeeded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"foggy_town_0001.png", "foggy_town_0002.png", "foggy_town_0003.png"}, names)
}
