package model

import (
	"cmp"
	"slices"
)

// HostSummary counts the outcomes of one host.
type HostSummary struct {
	Host       string `json:"host"`
	Downloaded int    `json:"downloaded"`
	Failed     int    `json:"failed"`
}

// Summary condenses a CrawlReport for quick review.
type Summary struct {
	Root          string            `json:"root"`
	Downloaded    int               `json:"downloaded"`
	Failed        int               `json:"failed"`
	ExtractFailed int               `json:"extractFailed"`
	Hosts         []HostSummary     `json:"hosts"`
	ErrorKinds    map[ErrorKind]int `json:"errorKinds,omitempty"`
	Fatal         string            `json:"fatal,omitempty"`
}

// NewSummary summarizes r. Hosts are ordered by total URLs, busiest first.
func NewSummary(r *CrawlReport) *Summary {
	s := &Summary{
		Root:          r.Root,
		Downloaded:    len(r.Downloaded),
		Failed:        len(r.Errors),
		ExtractFailed: len(r.ExtractErrors),
		ErrorKinds:    make(map[ErrorKind]int),
		Fatal:         r.Fatal,
	}

	byHost := make(map[string]*HostSummary)
	host := func(url string) *HostSummary {
		h := hostOf(url)
		if hs, ok := byHost[h]; ok {
			return hs
		}
		hs := &HostSummary{Host: h}
		byHost[h] = hs
		return hs
	}

	for _, url := range r.Downloaded {
		host(url).Downloaded++
	}
	for url, pe := range r.Errors {
		host(url).Failed++
		s.ErrorKinds[pe.Kind]++
	}
	for _, pe := range r.ExtractErrors {
		s.ErrorKinds[pe.Kind]++
	}

	s.Hosts = make([]HostSummary, 0, len(byHost))
	for _, hs := range byHost {
		s.Hosts = append(s.Hosts, *hs)
	}
	slices.SortFunc(s.Hosts, func(a, b HostSummary) int {
		if c := cmp.Compare(b.Downloaded+b.Failed, a.Downloaded+a.Failed); c != 0 {
			return c
		}
		return cmp.Compare(a.Host, b.Host)
	})
	return s
}
