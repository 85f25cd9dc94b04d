package crawler

import "sync"

// admission is a download waiting for a host slot.
type admission struct {
	// run is submitted to the download pool once a slot is granted.
	// It must call hostAdmission.release for its host when the download ends.
	run task

	// reject is called instead of run when the pool refuses the task
	// after it left the backlog.
	reject func(error)
}

// hostController limits simultaneous downloads for one host.
//
// It is a two-transition state machine: acquire either takes a free slot or
// appends to the FIFO backlog, and release either hands the slot to the oldest
// backlog entry or frees it.
type hostController struct {
	limit int
	pool  *workerPool

	mu      sync.Mutex
	active  int
	backlog []admission
}

// acquire submits a.run immediately if the host has a free slot and queues
// it otherwise. An error means the pool rejected the task and no slot is held.
func (h *hostController) acquire(a admission) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active < h.limit {
		if err := h.pool.submit(a.run); err != nil {
			return err
		}
		h.active++
		return nil
	}

	h.backlog = append(h.backlog, a)
	return nil
}

// release gives the slot to the oldest queued download, or frees it.
// Backlog entries the pool rejects are handed their error and skipped.
func (h *hostController) release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for len(h.backlog) > 0 {
		next := h.backlog[0]
		h.backlog[0] = admission{}
		h.backlog = h.backlog[1:]

		err := h.pool.submit(next.run)
		if err == nil {
			return
		}
		next.reject(err)
	}
	h.active--
}

// snapshot returns the number of running downloads and queued ones.
func (h *hostController) snapshot() (active, queued int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active, len(h.backlog)
}

// hostAdmission owns one hostController per host, created on first use.
// Different hosts never share a lock.
type hostAdmission struct {
	perHost     int
	pool        *workerPool
	controllers sync.Map // host -> *hostController
}

func newHostAdmission(perHost int, pool *workerPool) *hostAdmission {
	return &hostAdmission{perHost: perHost, pool: pool}
}

func (a *hostAdmission) controller(host string) *hostController {
	if c, ok := a.controllers.Load(host); ok {
		return c.(*hostController)
	}
	c, _ := a.controllers.LoadOrStore(host, &hostController{limit: a.perHost, pool: a.pool})
	return c.(*hostController)
}

// acquire admits a download for host. See hostController.acquire.
func (a *hostAdmission) acquire(host string, adm admission) error {
	return a.controller(host).acquire(adm)
}

// release returns a slot of host. See hostController.release.
func (a *hostAdmission) release(host string) {
	a.controller(host).release()
}
