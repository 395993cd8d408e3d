package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parleyhq/parley/pkg/chat"
)

// defaultPollDelay is the fixed delay between status checks.
const defaultPollDelay = 3 * time.Second

// fetchTimeout bounds one poll round-trip.
const fetchTimeout = 15 * time.Second

// MessageStore is the slice of the session store the controller mutates
// through. Updates are addressed by stable (sessionID, messageID) pairs
// resolved at apply time; a false return means the target is gone and the
// update was dropped.
type MessageStore interface {
	UpdateMessage(sessionID, messageID string, fn func(*chat.Message)) bool
}

// pollJob is one scheduled status check. It carries everything the check
// needs; the loop has no other state.
type pollJob struct {
	taskID    string
	sessionID string
	messageID string
}

// Controller manages the submit/poll lifecycle of image-generation tasks.
// A per-task pending guard keeps at most one scheduled poll per task
// identifier.
type Controller struct {
	store    MessageStore
	client   *Client
	proxyURL func(string) string
	logger   *slog.Logger
	delay    time.Duration

	mu      sync.Mutex
	pending map[string]struct{}

	jobs     chan pollJob
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewController wires a Controller. proxyURL rewrites remote image URLs
// into locally-routable ones; nil means identity.
func NewController(store MessageStore, client *Client, proxyURL func(string) string, logger *slog.Logger) *Controller {
	if proxyURL == nil {
		proxyURL = func(u string) string { return u }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:    store,
		client:   client,
		proxyURL: proxyURL,
		logger:   logger.With("component", "task"),
		delay:    defaultPollDelay,
		pending:  make(map[string]struct{}),
		jobs:     make(chan pollJob, 16),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop.
func (c *Controller) Start() {
	go c.loop()
}

// Stop halts the poll loop and waits for it to finish. Safe to call
// multiple times. Already-scheduled timers fire into a closed stop
// channel and are discarded.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.done
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.stopCh:
			return
		case job := <-c.jobs:
			c.poll(job)
		}
	}
}

// Submit validates and submits a generation request bound to the given
// message. All failures are rendered into the message; Submit never
// returns an error to the caller.
func (c *Controller) Submit(ctx context.Context, sessionID, messageID string, req Request) {
	if err := req.Validate(); err != nil {
		c.store.UpdateMessage(sessionID, messageID, func(m *chat.Message) {
			m.Content = err.Error()
			m.Streaming = false
		})
		return
	}

	resp, err := c.client.Submit(ctx, req)
	if err != nil {
		c.failMessage(sessionID, messageID, "Task submission failed: "+err.Error())
		return
	}
	if !resp.Accepted() {
		reason := resp.Description
		if reason == "" {
			reason = fmt.Sprintf("rejected with code %d", resp.Code)
		}
		c.failMessage(sessionID, messageID, "Task submission rejected: "+reason)
		return
	}

	status := resp.Status
	if status == "" {
		status = StatusSubmitted
	}

	delivered := c.store.UpdateMessage(sessionID, messageID, func(m *chat.Message) {
		m.Kind = chat.KindGenerationTask
		m.Streaming = true
		m.Content = "Task submitted, waiting for progress..."
		m.Task = &chat.TaskInfo{
			TaskID: resp.Result,
			Status: status,
			Action: req.Action,
		}
	})
	if !delivered {
		c.logger.Debug("dropping submit result for deleted session", "task", resp.Result)
		return
	}

	c.schedule(pollJob{taskID: resp.Result, sessionID: sessionID, messageID: messageID})
}

// schedule arms a single delayed poll for the task unless one is already
// pending. Returns false when the guard rejected the schedule.
func (c *Controller) schedule(job pollJob) bool {
	c.mu.Lock()
	if _, exists := c.pending[job.taskID]; exists {
		c.mu.Unlock()
		return false
	}
	c.pending[job.taskID] = struct{}{}
	c.mu.Unlock()

	time.AfterFunc(c.delay, func() {
		select {
		case c.jobs <- job:
		case <-c.stopCh:
		}
	})
	return true
}

// clearPending releases the task's guard. Called before the poll response
// is evaluated so a retrigger during evaluation is safe.
func (c *Controller) clearPending(taskID string) {
	c.mu.Lock()
	delete(c.pending, taskID)
	c.mu.Unlock()
}

// poll runs one status check and renders the result into the message.
func (c *Controller) poll(job pollJob) {
	c.clearPending(job.taskID)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	detail, err := c.client.Fetch(ctx, job.taskID)
	if err != nil {
		// A single failed fetch ends the loop; no indefinite retries.
		c.failMessage(job.sessionID, job.messageID, "Task status check failed: "+err.Error())
		return
	}

	switch detail.Status {
	case StatusSuccess:
		c.store.UpdateMessage(job.sessionID, job.messageID, func(m *chat.Message) {
			m.Content = fmt.Sprintf("![%s](%s)", detail.Prompt, c.proxyURL(detail.ImageURL))
			m.Streaming = false
			if m.Task != nil {
				m.Task.Status = detail.Status
				m.Task.ImageURL = detail.ImageURL
				m.Task.Finished = true
			}
		})
	case StatusFailure:
		reason := detail.FailReason
		if reason == "" {
			reason = "the task failed without a reason"
		}
		c.store.UpdateMessage(job.sessionID, job.messageID, func(m *chat.Message) {
			m.Content = "Image generation failed: " + reason
			m.Streaming = false
			if m.Task != nil {
				m.Task.Status = detail.Status
				m.Task.Finished = true
			}
		})
	default:
		delivered := c.store.UpdateMessage(job.sessionID, job.messageID, func(m *chat.Message) {
			m.Content = renderProgress(detail, c.proxyURL)
			if m.Task != nil {
				m.Task.Status = detail.Status
				m.Task.ImageURL = detail.ImageURL
			}
		})
		if !delivered {
			c.logger.Debug("dropping poll result for deleted session", "task", job.taskID)
			return
		}
		c.schedule(job)
	}
}

// failMessage renders a transport or application failure into the message.
func (c *Controller) failMessage(sessionID, messageID, content string) {
	c.logger.Warn("task failed", "session", sessionID, "detail", content)
	c.store.UpdateMessage(sessionID, messageID, func(m *chat.Message) {
		m.Content = content
		m.Streaming = false
		m.IsError = true
	})
}

// renderProgress describes a non-terminal task, embedding the preview
// image when one is already available mid-flight.
func renderProgress(detail Detail, proxyURL func(string) string) string {
	progress := detail.Progress
	if progress == "" {
		progress = "queued"
	}
	content := fmt.Sprintf("**Status:** %s\n**Progress:** %s", detail.Status, progress)
	if detail.ImageURL != "" {
		content += fmt.Sprintf("\n\n![%s](%s)", detail.Prompt, proxyURL(detail.ImageURL))
	}
	return content
}
