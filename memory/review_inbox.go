package memory

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReviewEntry is one flagged conflict, rendered to the review inbox
// file for an operator to resolve.
type ReviewEntry struct {
	OldFactID  uuid.UUID
	NewSubject string
	NewObject  string
	OldObject  string
	Reason     string
	At         time.Time
}

// ReviewInbox appends flagged-conflict entries to a Markdown file. It
// never truncates or rewrites the file; resolution is an operator task
// performed outside this process.
type ReviewInbox struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewReviewInbox returns an inbox that writes to the file at path. The
// file is opened, and created if missing, on each Append.
func NewReviewInbox(path string, logger *zap.Logger) *ReviewInbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewInbox{path: path, logger: logger.With(zap.String("component", "review_inbox"))}
}

// Append writes one entry. Failures are logged, not propagated: a
// review-inbox write failure must never block consolidation.
func (i *ReviewInbox) Append(entry ReviewEntry) {
	i.mu.Lock()
	defer i.mu.Unlock()

	f, err := os.OpenFile(i.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		i.logger.Warn("open review inbox failed", zap.Error(err))
		return
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "## Flagged conflict — %s\n\n- old fact: `%s`\n- old object: %q\n- new subject: %q\n- new object: %q\n- reason: %s\n\n",
		entry.At.Format(time.RFC3339), entry.OldFactID, entry.OldObject, entry.NewSubject, entry.NewObject, entry.Reason)
	if err != nil {
		i.logger.Warn("write review inbox entry failed", zap.Error(err))
	}
}
