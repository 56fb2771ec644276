package service

import (
	"context"
	"sync"

	"github.com/phrazzld/genserve/internal/artifact"
	"github.com/phrazzld/genserve/internal/domain"
	"github.com/phrazzld/genserve/internal/queue"
	"github.com/stretchr/testify/mock"
)

// MockQueueClient mocks the queue.Client interface
type MockQueueClient struct {
	mock.Mock
}

func (m *MockQueueClient) Submit(ctx context.Context, prompt, artifactID string) (string, error) {
	args := m.Called(ctx, prompt, artifactID)
	return args.String(0), args.Error(1)
}

func (m *MockQueueClient) Poll(ctx context.Context, jobID string) (queue.Result, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(queue.Result), args.Error(1)
}

// MockArtifactReader mocks the ArtifactReader interface
type MockArtifactReader struct {
	mock.Mock
}

func (m *MockArtifactReader) Get(ctx context.Context, artifactID string) (*artifact.Artifact, error) {
	args := m.Called(ctx, artifactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*artifact.Artifact), args.Error(1)
}

// recordingAuditor captures audit events in memory
type recordingAuditor struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *recordingAuditor) Log(event domain.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *recordingAuditor) Events() []domain.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditEvent(nil), a.events...)
}
