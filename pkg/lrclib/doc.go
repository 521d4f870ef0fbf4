// Package lrclib provides a client for the LRCLIB lyrics API.
//
// # Overview
//
// LRCLIB (https://lrclib.net) is a free, keyless database of synced and
// plain lyrics. This package covers the read endpoints: lookup by track
// signature, lookup by record id, and search.
//
// # Quick Start
//
//	import "github.com/jfmyers9/lyricsync/pkg/lrclib"
//
//	client := lrclib.NewClient(lrclib.Config{})
//
//	rec, err := client.Get(ctx, lrclib.Signature{
//	    Track:    "Yesterday",
//	    Artist:   "The Beatles",
//	    Album:    "Help!",
//	    Duration: 125 * time.Second,
//	})
//	if errors.Is(err, lrclib.ErrNotFound) {
//	    // no record for this signature
//	}
//	fmt.Println(rec.SyncedLyrics)
//
// # Searching
//
//	records, err := client.Search(ctx, lrclib.Query{Q: "yesterday beatles"})
//	for _, r := range records {
//	    if r.HasSynced() {
//	        fmt.Println(r.ID, r.ArtistName, "-", r.TrackName)
//	    }
//	}
//
// # Error Handling
//
// A missing record is reported as ErrNotFound. Other non-2xx responses are
// returned as *Error. Network errors, 429 and 5xx responses are retried with
// exponential backoff before being returned.
package lrclib
