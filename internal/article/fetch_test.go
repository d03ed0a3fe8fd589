package article

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const samplePage = `<!doctype html>
<html><head>
<title>  Why Graphs   Matter </title>
<meta name="description" content="A short tour of graphs.">
<script>var tracking = "ignore me";</script>
<style>p { color: red }</style>
</head>
<body>
<nav><ul><li>Home</li><li>About</li></ul></nav>
<article>
<h1>Why graphs matter</h1>
<p>Graphs model <b>relationships</b> between things.</p>
<p>   </p>
<ul><li>Trees are graphs.</li></ul>
</article>
<footer><p>copyright</p></footer>
</body></html>`

func TestExtract(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(samplePage))
	if err != nil {
		t.Fatalf("html.Parse() error = %v", err)
	}
	a := Extract(doc)
	if a.Title != "Why Graphs Matter" {
		t.Fatalf("Title = %q", a.Title)
	}
	if a.Description != "A short tour of graphs." {
		t.Fatalf("Description = %q", a.Description)
	}
	want := "Why graphs matter\n\nGraphs model relationships between things.\n\nTrees are graphs."
	if a.Text != want {
		t.Fatalf("Text = %q, want %q", a.Text, want)
	}
}

func TestFetcherFetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/post":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(samplePage))
		case "/empty":
			_, _ = w.Write([]byte("<html><body><script>x()</script></body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{UserAgent: "test-agent", AllowPrivate: true})
	a, err := f.Fetch(context.Background(), srv.URL+"/post")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if a.URL != srv.URL+"/post" || a.Title != "Why Graphs Matter" {
		t.Fatalf("Fetch() = %+v", a)
	}
	if gotUA != "test-agent" {
		t.Fatalf("User-Agent = %q", gotUA)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/empty"); !errors.Is(err, ErrEmptyArticle) {
		t.Fatalf("Fetch(empty) error = %v, want ErrEmptyArticle", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); !errors.Is(err, ErrFetch) {
		t.Fatalf("Fetch(missing) error = %v, want ErrFetch", err)
	}
}

func TestFetcherRejectsNonPublicAddresses(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{})
	if _, err := f.Fetch(context.Background(), srv.URL+"/post"); !errors.Is(err, ErrBlockedAddress) {
		t.Fatalf("Fetch(loopback) error = %v, want ErrBlockedAddress", err)
	}
	if hits != 0 {
		t.Fatalf("loopback server received %d requests", hits)
	}
}

func TestPublicAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"93.184.216.34", true},
		{"2606:2800:220:1:248:1893:25c8:1946", true},
		{"127.0.0.1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"::1", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"::ffff:127.0.0.1", false},
		{"224.0.0.1", false},
	}
	for _, tt := range tests {
		if got := PublicAddr(netip.MustParseAddr(tt.addr)); got != tt.want {
			t.Errorf("PublicAddr(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestValidateURL(t *testing.T) {
	for _, raw := range []string{"", "example.com/a", "ftp://example.com/a", "https://"} {
		if _, err := ValidateURL(raw); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("ValidateURL(%q) error = %v, want ErrInvalidURL", raw, err)
		}
	}
	if _, err := ValidateURL("https://example.com/a?b=c"); err != nil {
		t.Fatalf("ValidateURL() error = %v", err)
	}
}

func TestTruncateUTF8(t *testing.T) {
	s := "héllo"
	if got := TruncateUTF8(s, 2); got != "h" {
		t.Fatalf("TruncateUTF8() = %q", got)
	}
	if got := TruncateUTF8(s, 10); got != s {
		t.Fatalf("TruncateUTF8() = %q", got)
	}
}
