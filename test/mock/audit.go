// test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/dev-mohitbeniwal/scorecache/audit"
	"github.com/stretchr/testify/mock"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) LogEvent(ctx context.Context, log audit.CacheAuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditService) QueryEvents(ctx context.Context, from, to time.Time, subjectID, eventType string) ([]audit.CacheAuditLog, error) {
	args := m.Called(ctx, from, to, subjectID, eventType)
	logs, _ := args.Get(0).([]audit.CacheAuditLog)
	return logs, args.Error(1)
}
