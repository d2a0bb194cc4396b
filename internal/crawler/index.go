package crawler

import "sort"

// AttachmentIndex accumulates resolved attachment URLs per document title,
// preserving title insertion order and per-title URL order, while keeping a
// run-global set of every URL seen. It is private, run-scoped state and is
// not safe for concurrent use.
type AttachmentIndex struct {
	titles  []string
	byTitle map[string]map[string]struct{}
	ordered map[string][]string
	seen    map[string]struct{}
}

// NewAttachmentIndex returns an empty index.
func NewAttachmentIndex() *AttachmentIndex {
	return &AttachmentIndex{
		byTitle: make(map[string]map[string]struct{}),
		ordered: make(map[string][]string),
		seen:    make(map[string]struct{}),
	}
}

// Add records url under title. The URL is appended to the title's list only
// if it is new for that title; the first insert for a title creates its
// list. The return value reports whether the URL was recorded.
func (x *AttachmentIndex) Add(title, url string) bool {
	if url == "" {
		return false
	}
	members, ok := x.byTitle[title]
	if !ok {
		members = make(map[string]struct{})
		x.byTitle[title] = members
		x.titles = append(x.titles, title)
	}
	if _, dup := members[url]; dup {
		return false
	}
	members[url] = struct{}{}
	x.ordered[title] = append(x.ordered[title], url)
	x.seen[url] = struct{}{}
	return true
}

// Titles returns document titles in insertion order.
func (x *AttachmentIndex) Titles() []string {
	return x.titles
}

// URLs returns the recorded URLs for title in insertion order.
func (x *AttachmentIndex) URLs(title string) []string {
	return x.ordered[title]
}

// Categories returns the title→URLs mapping for serialization.
func (x *AttachmentIndex) Categories() map[string][]string {
	out := make(map[string][]string, len(x.ordered))
	for title, urls := range x.ordered {
		out[title] = append([]string(nil), urls...)
	}
	return out
}

// UniqueURLs returns every distinct URL of the run, lexicographically sorted.
func (x *AttachmentIndex) UniqueURLs() []string {
	urls := make([]string, 0, len(x.seen))
	for url := range x.seen {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// UniqueCount returns the size of the global dedup set.
func (x *AttachmentIndex) UniqueCount() int {
	return len(x.seen)
}
