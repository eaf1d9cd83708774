package progress

import (
	"sync"

	"github.com/kreeda/resumatch/internal/domain"
)

// ParentTracker wraps a Tracker for a "process-resume-group" parent job,
// tallying child completions/failures across concurrently-running resume
// pipelines and recomputing percent as completed/total*100, which never
// regresses below the last pushed value.
type ParentTracker struct {
	*Tracker

	mu        sync.Mutex
	total     int
	completed int
	failed    int
}

// NewParentTracker starts a ParentTracker for jobID tracking total children.
func NewParentTracker(pusher domain.ProgressPusher, jobID, prefix string, total int) *ParentTracker {
	return &ParentTracker{
		Tracker: NewTracker(pusher, jobID, prefix),
		total:   total,
	}
}

// ChildCompleted records one more successfully-completed child and pushes
// an updated progress record.
func (p *ParentTracker) ChildCompleted(ctx domain.Context, resumeID string) error {
	p.mu.Lock()
	p.completed++
	completed, total := p.completed, p.total
	p.mu.Unlock()
	return p.pushTally(ctx, completed, total, resumeID, true)
}

// ChildFailed records one more failed child and pushes an updated progress
// record; failed children still count toward "completed" for percent
// purposes since the parent job itself doesn't retry them.
func (p *ParentTracker) ChildFailed(ctx domain.Context, resumeID string) error {
	p.mu.Lock()
	p.failed++
	p.completed++
	completed, total := p.completed, p.total
	p.mu.Unlock()
	return p.pushTally(ctx, completed, total, resumeID, false)
}

func (p *ParentTracker) pushTally(ctx domain.Context, completed, total int, resumeID string, success bool) error {
	pct := percentFromTally(completed, total)
	if pct < p.lastPct {
		pct = p.lastPct
	}
	step := "child-completed"
	if !success {
		step = "child-failed"
	}
	return p.Update(ctx, pct, step, resumeID, "", map[string]any{
		"total_children": total,
		"completed":      completed,
	})
}

func percentFromTally(completed, total int) int {
	if total <= 0 {
		return 0
	}
	pct := completed * 100 / total
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Tally returns the current completed/total/failed counts, letting a
// caller detect when every expected child has reported in and trigger
// CompleteParent exactly once.
func (p *ParentTracker) Tally() (completed, total, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed, p.total, p.failed
}

// CompleteParent pushes the final 100% completion record with
// totalChildren/completed/failed/successRate in its summary.
func (p *ParentTracker) CompleteParent(ctx domain.Context) error {
	p.mu.Lock()
	total, completed, failed := p.total, p.completed, p.failed
	p.mu.Unlock()

	successRate := 1.0
	if total > 0 {
		successRate = float64(total-failed) / float64(total)
	}

	return p.Complete(ctx, map[string]any{
		"total_children": total,
		"completed":      completed,
		"failed":         failed,
		"success_rate":   successRate,
	})
}
