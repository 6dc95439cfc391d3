// Package scraper downloads the OI spurts export from the exchange website.
//
// A fetch opens the landing page to prime the session cookies, looks for
// the export link in the HTML, downloads it and decodes it into a table.
// When the page yields nothing usable the fallback JSON endpoints are
// tried instead. Requests are paced with a token bucket and retried with
// backoff; exhausting the retries is an ordinary NETWORK failure.
package scraper
