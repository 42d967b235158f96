package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-relay/internal/mocks"
	"dm-relay/internal/telemetry"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.dm", "dm-relay", "test")

	userID := "user-1"
	publisher.On("Publish", mock.Anything, "audit.dm", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(telemetry.AuditEnvelope)
		return ok &&
			envelope.EventType == "audit_log" &&
			envelope.Service == "dm-relay" &&
			envelope.RequestID == "req-1" &&
			envelope.UserID != nil && *envelope.UserID == userID &&
			envelope.Payload.Text == "user logged in"
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "user logged in", "req-1", &userID)

	publisher.AssertExpectations(t)
}

func TestAuditEmitterNilSafe(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "ignored", "req-1", nil)
	})
}
