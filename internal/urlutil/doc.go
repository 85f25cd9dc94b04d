// Package urlutil provides small URL helpers shared by the crawler and the
// downloaders.
//
// HostOf is the only piece the crawler depends on: every frontier URL is
// mapped to its host before it is admitted, so a URL that cannot be parsed
// aborts the whole traversal.
package urlutil
