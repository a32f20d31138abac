package record

import (
	"errors"
	"fmt"
	"strings"
)

const (
	urlMarker = "/wiki/"
	keySuffix = ".html"
)

// ErrInvalidRecord marks a decoded value that cannot become a Record.
var ErrInvalidRecord = errors.New("invalid record")

// Entry is the raw shape of one archived article.
type Entry struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ArticleBody struct {
		HTML string `json:"html"`
	} `json:"article_body"`
}

// Record is one validated element destined for a sink.
type Record struct {
	Name string
	URL  string
	Key  string
	Body []byte
}

// FromEntry validates e and derives its canonical key.
func FromEntry(e Entry) (Record, error) {
	if e.Name == "" {
		return Record{}, fmt.Errorf("%w: empty name", ErrInvalidRecord)
	}
	key, err := CanonicalKey(e.URL)
	if err != nil {
		return Record{}, err
	}
	return Record{Name: e.Name, URL: e.URL, Key: key, Body: []byte(e.ArticleBody.HTML)}, nil
}

// CanonicalKey returns the sanitized file name derived from an article URL:
// everything after the first "/wiki/" plus ".html".
func CanonicalKey(url string) (string, error) {
	idx := strings.Index(url, urlMarker)
	if idx < 0 {
		return "", fmt.Errorf("%w: no %q in %q", ErrInvalidRecord, urlMarker, url)
	}
	rest := url[idx+len(urlMarker):]
	if rest == "" {
		return "", fmt.Errorf("%w: empty title in %q", ErrInvalidRecord, url)
	}
	return Sanitize(rest + keySuffix), nil
}

var sanitizer = strings.NewReplacer(
	"/", "__",
	":", "__colon__",
	"*", "__star__",
)

// Sanitize replaces characters that cannot appear in a file name.
func Sanitize(name string) string {
	return sanitizer.Replace(name)
}
