package operations

import "sync"

// AppState is the coarse application-lifecycle signal a host process can
// report through AppStateSource. It is named generically (not "foreground"/
// "background" alone) because the same three states answer for a CLI daemon
// receiving SIGTSTP/SIGCONT/SIGTERM just as well as a mobile app.
type AppState int

const (
	AppStateActive AppState = iota
	AppStateSuspended
	AppStateTerminating
)

func (s AppState) String() string {
	switch s {
	case AppStateActive:
		return "active"
	case AppStateSuspended:
		return "suspended"
	case AppStateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// AppStateSource is the platform hook described in spec §6: explicitly out
// of core scope, consumed only through this interface. A host embeds the
// operations core into a process with an actual lifecycle (a GUI app, a
// supervised daemon) by implementing it and driving BackgroundObserver.
type AppStateSource interface {
	CurrentState() AppState
	BeginBackgroundTask(name string) (end func(), err error)
}

// BackgroundObserver suspends a Queue when its host reports AppStateSuspended,
// unless it can obtain a background-task extension from the AppStateSource,
// in which case the queue keeps running until the extension is ended
// (returning to active) or the host starts terminating.
type BackgroundObserver struct {
	Queue  *Queue
	Source AppStateSource
	Name   string

	mu      sync.Mutex
	endTask func()
}

// NewBackgroundObserver constructs a BackgroundObserver for queue, reporting
// its background-task requests to source under the given name.
func NewBackgroundObserver(queue *Queue, source AppStateSource, name string) *BackgroundObserver {
	return &BackgroundObserver{Queue: queue, Source: source, Name: name}
}

// HandleStateChange applies state, suspending or resuming the Queue as
// appropriate. Hosts call this from whatever lifecycle callback their
// platform provides.
func (b *BackgroundObserver) HandleStateChange(state AppState) {
	switch state {
	case AppStateActive:
		b.endCurrentTask()
		b.Queue.Resume()

	case AppStateSuspended:
		end, err := b.Source.BeginBackgroundTask(b.Name)
		if err != nil {
			b.Queue.Suspend()
			return
		}
		b.mu.Lock()
		b.endTask = end
		b.mu.Unlock()

	case AppStateTerminating:
		b.endCurrentTask()
		b.Queue.Suspend()
	}
}

func (b *BackgroundObserver) endCurrentTask() {
	b.mu.Lock()
	end := b.endTask
	b.endTask = nil
	b.mu.Unlock()
	if end != nil {
		end()
	}
}
