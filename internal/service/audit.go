package service

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/repository"
)

// RequestMeta carries the client details captured from the triggering HTTP
// request into the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Auditor records account state transitions. Implementations must never fail
// the parent operation: audit is observability, not control flow.
type Auditor interface {
	Record(ctx context.Context, userID uint64, action, details string, meta RequestMeta)
}

// DBAuditor writes audit events to the user_logs table. Write failures are
// logged server-side and swallowed.
type DBAuditor struct {
	Logs *repository.UserLogRepo
}

func NewDBAuditor(logs *repository.UserLogRepo) *DBAuditor { return &DBAuditor{Logs: logs} }

// Record appends one audit row with its own bounded timeout, detached from
// the request context so a cancelled request still gets its trail entry.
func (a *DBAuditor) Record(_ context.Context, userID uint64, action, details string, meta RequestMeta) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := a.Logs.Insert(ctx, &model.UserLog{
		UserID:    userID,
		Action:    action,
		Details:   details,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		log.Printf("audit: recording %s for user %d failed: %v", action, userID, err)
	}
}
