package crawler

import "sync"

// Result is the outcome of one traversal.
type Result struct {
	// Downloaded lists successfully downloaded URLs in completion order.
	Downloaded []string

	// Errors maps URLs whose download failed to the failure cause.
	// A URL is never in both Downloaded and Errors.
	Errors map[string]error

	// ExtractErrors maps downloaded URLs whose links could not be extracted
	// to the failure cause. These URLs stay in Downloaded.
	ExtractErrors map[string]error
}

// aggregator accumulates per-URL outcomes from concurrent workers.
// Each container has its own lock.
type aggregator struct {
	mu         sync.Mutex
	downloaded []string

	errors        sync.Map // url -> error
	extractErrors sync.Map // url -> error
}

func (a *aggregator) addDownloaded(url string) {
	a.mu.Lock()
	a.downloaded = append(a.downloaded, url)
	a.mu.Unlock()
}

func (a *aggregator) addError(url string, err error) {
	a.errors.Store(url, err)
}

func (a *aggregator) addExtractError(url string, err error) {
	a.extractErrors.Store(url, err)
}

// result builds the immutable Result. It must only be called once the
// traversal has quiesced.
func (a *aggregator) result() *Result {
	a.mu.Lock()
	downloaded := make([]string, len(a.downloaded))
	copy(downloaded, a.downloaded)
	a.mu.Unlock()

	return &Result{
		Downloaded:    downloaded,
		Errors:        collect(&a.errors),
		ExtractErrors: collect(&a.extractErrors),
	}
}

func collect(m *sync.Map) map[string]error {
	out := make(map[string]error)
	m.Range(func(k, v any) bool {
		out[k.(string)] = v.(error)
		return true
	})
	return out
}
