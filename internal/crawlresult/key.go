package crawlresult

import "github.com/FranksOps/atra/internal/atraurl"

// Key returns the index key bytes for u: the normalized URL string, which
// atraurl.URL already lower-cases the scheme/host for and strips the
// fragment from.
func Key(u atraurl.URL) []byte { return []byte(u.String()) }
