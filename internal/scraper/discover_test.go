package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindDownloadURL(t *testing.T) {
	const (
		page = "https://www.nseindia.com/market-data/oi-spurts"
		base = "https://www.nseindia.com"
	)

	tests := []struct {
		name string
		html string
		want string
		ok   bool
	}{
		{
			name: "direct excel link",
			html: `<html><body><a href="/content/oi_spurts_20240102.xlsx">Download</a></body></html>`,
			want: "https://www.nseindia.com/content/oi_spurts_20240102.xlsx",
			ok:   true,
		},
		{
			name: "page relative link",
			html: `<a href="downloads/OI-Spurts.xls">xls</a>`,
			want: "https://www.nseindia.com/market-data/downloads/OI-Spurts.xls",
			ok:   true,
		},
		{
			name: "download link mentioning oi",
			html: `<a href="/about">About</a><a href="/api/download?type=oi">CSV</a>`,
			want: "https://www.nseindia.com/api/download?type=oi",
			ok:   true,
		},
		{
			name: "excel link beats earlier download link",
			html: `<a href="/download/other-oi">x</a><a href="/x/oi_spurts.xlsx">y</a>`,
			want: "https://www.nseindia.com/x/oi_spurts.xlsx",
			ok:   true,
		},
		{
			name: "embedded json download url",
			html: `<script>var cfg = {"downloadUrl":"https:\/\/archives.nseindia.com\/oi.xlsx"};</script>`,
			want: "https://archives.nseindia.com/oi.xlsx",
			ok:   true,
		},
		{
			name: "data-url attribute",
			html: `<div class="btn" data-url="/data/oi.json"></div>`,
			want: "https://www.nseindia.com/data/oi.json",
			ok:   true,
		},
		{
			name: "form action",
			html: `<form method="post" action="/download/report"></form>`,
			want: "https://www.nseindia.com/download/report",
			ok:   true,
		},
		{
			name: "api url in script",
			html: `<script>{"apiUrl":"/api/live-analysis-oi-spurts-underlyings"}</script>`,
			want: "https://www.nseindia.com/api/live-analysis-oi-spurts-underlyings",
			ok:   true,
		},
		{
			name: "api path in fetch call",
			html: `<script>fetch('/api/snapshot-oi-spurts')</script>`,
			want: "https://www.nseindia.com/api/snapshot-oi-spurts",
			ok:   true,
		},
		{
			name: "data-api attribute",
			html: `<section data-api="/api/feed"></section>`,
			want: "https://www.nseindia.com/api/feed",
			ok:   true,
		},
		{
			name: "nothing",
			html: `<html><body><a href="/about">About</a></body></html>`,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindDownloadURL(tt.html, page, base)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsSpreadsheetContentType(t *testing.T) {
	assert.True(t, IsSpreadsheetContentType("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.True(t, IsSpreadsheetContentType("Application/Octet-Stream"))
	assert.True(t, IsSpreadsheetContentType("application/excel"))
	assert.False(t, IsSpreadsheetContentType("text/html; charset=utf-8"))
	assert.False(t, IsSpreadsheetContentType(""))
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, looksLikeHTML([]byte("<!DOCTYPE html><html><body>blocked</body></html>")))
	assert.True(t, looksLikeHTML([]byte("  <HTML>")))
	assert.False(t, looksLikeHTML([]byte("Symbol,OI\nTCS,1\n")))
	assert.False(t, looksLikeHTML(nil))
}
