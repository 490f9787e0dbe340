// Package scheduler serializes hotkey and auto transcription jobs.
//
// A Queue is not safe for concurrent use. It is owned by the orchestrator
// goroutine, which is the only caller of every method.
package scheduler

// Kind identifies which job variant is running.
type Kind string

const (
	KindHotkey Kind = "hotkey"
	KindAuto   Kind = "auto"
)

// HotkeyJob is produced from a just-finished interactive recording.
type HotkeyJob struct {
	AudioPath string
	TextPath  string
}

// AutoJob is produced from a stable file detected in a watched directory.
type AutoJob struct {
	InputPath     string
	OutputPath    string
	ProcessedPath string
}

// Job is one of HotkeyJob or AutoJob. Exactly one pointer is set.
type Job struct {
	Hotkey *HotkeyJob
	Auto   *AutoJob
}

// Kind reports the job variant.
func (j Job) Kind() Kind {
	if j.Hotkey != nil {
		return KindHotkey
	}
	return KindAuto
}

// Queue tracks one hotkey slot, a FIFO of auto jobs, and the active kind.
type Queue struct {
	hotkeySessionActive bool
	pendingHotkey       *HotkeyJob
	autoQueue           []AutoJob
	active              Kind
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// BeginHotkeySession starts an interactive session. It returns false and
// leaves state untouched while another session is unresolved.
func (q *Queue) BeginHotkeySession() bool {
	if q.hotkeySessionActive {
		return false
	}
	q.hotkeySessionActive = true
	return true
}

// CancelHotkeySession ends the session, drops any pending hotkey job, and
// releases the active slot if a hotkey job held it.
func (q *Queue) CancelHotkeySession() {
	q.hotkeySessionActive = false
	q.pendingHotkey = nil
	if q.active == KindHotkey {
		q.active = ""
	}
}

// HotkeySessionActive reports whether an interactive session is in flight.
func (q *Queue) HotkeySessionActive() bool {
	return q.hotkeySessionActive
}

// EnqueueHotkey stores the finished recording. It returns false when a
// hotkey job is already pending.
func (q *Queue) EnqueueHotkey(job HotkeyJob) bool {
	if q.pendingHotkey != nil {
		return false
	}
	q.pendingHotkey = &job
	return true
}

// EnqueueAuto appends to the auto FIFO. Deduplication is the caller's job.
func (q *Queue) EnqueueAuto(job AutoJob) {
	q.autoQueue = append(q.autoQueue, job)
}

// NextJob promotes and returns the next runnable job.
//
// Nothing is returned while a job is active. A pending hotkey job always
// wins; while a hotkey session is open without a ready job, auto work waits.
func (q *Queue) NextJob() (Job, bool) {
	if q.active != "" {
		return Job{}, false
	}
	if q.pendingHotkey != nil {
		job := q.pendingHotkey
		q.pendingHotkey = nil
		q.active = KindHotkey
		return Job{Hotkey: job}, true
	}
	if q.hotkeySessionActive {
		return Job{}, false
	}
	if len(q.autoQueue) == 0 {
		return Job{}, false
	}
	job := q.autoQueue[0]
	q.autoQueue[0] = AutoJob{}
	q.autoQueue = q.autoQueue[1:]
	q.active = KindAuto
	return Job{Auto: &job}, true
}

// ActiveKind returns the kind currently running, if any.
func (q *Queue) ActiveKind() (Kind, bool) {
	if q.active == "" {
		return "", false
	}
	return q.active, true
}

// CompleteActive releases the active slot when it matches kind and is a
// no-op otherwise, so stale completion events cannot end a newer session.
// Completing the active hotkey job ends the hotkey session.
func (q *Queue) CompleteActive(kind Kind) {
	if kind == "" || q.active != kind {
		return
	}
	q.active = ""
	if kind == KindHotkey {
		q.hotkeySessionActive = false
	}
}

// AutoQueueLen returns the number of auto jobs waiting to run.
func (q *Queue) AutoQueueLen() int {
	return len(q.autoQueue)
}

// HotkeyPending reports whether a finished recording awaits dispatch.
func (q *Queue) HotkeyPending() bool {
	return q.pendingHotkey != nil
}
