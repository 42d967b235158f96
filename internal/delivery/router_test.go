package delivery_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-relay/internal/delivery"
	"dm-relay/internal/mocks"
	"dm-relay/internal/models"
)

func TestSendPersistsAndPushesWhenOnline(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	pusher := new(mocks.PusherMock)
	router := delivery.NewRouter(repo, pusher)

	stored := models.Message{ID: 1, SenderID: "u1", ReceiverID: "u2", Content: "hi", CreatedAt: time.Now()}
	repo.On("CreateMessage", mock.Anything, "u1", "u2", "hi").Return(stored, nil).Once()
	pusher.On("IsOnline", "u2").Return(true).Once()
	pusher.On("PushMessage", "u2", stored).Return(1).Once()

	msg, err := router.Send(context.Background(), "u1", "u2", "hi")
	require.NoError(t, err)
	assert.Equal(t, stored, msg)
	assert.False(t, msg.Seen)

	repo.AssertExpectations(t)
	pusher.AssertExpectations(t)
}

func TestSendSkipsPushWhenOffline(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	pusher := new(mocks.PusherMock)
	router := delivery.NewRouter(repo, pusher)

	stored := models.Message{ID: 2, SenderID: "u1", ReceiverID: "u2", Content: "hi"}
	repo.On("CreateMessage", mock.Anything, "u1", "u2", "hi").Return(stored, nil).Once()
	pusher.On("IsOnline", "u2").Return(false).Once()

	msg, err := router.Send(context.Background(), "u1", "u2", "hi")
	require.NoError(t, err)
	assert.Equal(t, 2, msg.ID)

	// The message is in the store regardless; no push call is ever attempted.
	repo.AssertExpectations(t)
	pusher.AssertExpectations(t)
	pusher.AssertNotCalled(t, "PushMessage", mock.Anything, mock.Anything)
}

func TestSendSucceedsWhenPushReachesNobody(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	pusher := new(mocks.PusherMock)
	router := delivery.NewRouter(repo, pusher)

	stored := models.Message{ID: 3, SenderID: "u1", ReceiverID: "u2", Content: "hi"}
	repo.On("CreateMessage", mock.Anything, "u1", "u2", "hi").Return(stored, nil).Once()
	pusher.On("IsOnline", "u2").Return(true).Once()
	// Every connection died mid-push; persistence still wins.
	pusher.On("PushMessage", "u2", stored).Return(0).Once()

	msg, err := router.Send(context.Background(), "u1", "u2", "hi")
	require.NoError(t, err)
	assert.Equal(t, stored, msg)
}

func TestSendValidation(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := delivery.NewRouter(repo, new(mocks.PusherMock))

	_, err := router.Send(context.Background(), "u1", "u2", "   ")
	assert.ErrorIs(t, err, delivery.ErrEmptyContent)

	_, err = router.Send(context.Background(), "", "u2", "hi")
	assert.ErrorIs(t, err, delivery.ErrMissingIdentity)

	_, err = router.Send(context.Background(), "u1", "", "hi")
	assert.ErrorIs(t, err, delivery.ErrMissingIdentity)

	repo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendSurfacesStorageError(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	pusher := new(mocks.PusherMock)
	router := delivery.NewRouter(repo, pusher)

	repo.On("CreateMessage", mock.Anything, "u1", "u2", "hi").Return(models.Message{}, assert.AnError).Once()

	_, err := router.Send(context.Background(), "u1", "u2", "hi")
	require.Error(t, err)
	pusher.AssertNotCalled(t, "IsOnline", mock.Anything)
}

func TestSendWithoutPusherStillPersists(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := delivery.NewRouter(repo, nil)

	stored := models.Message{ID: 4, SenderID: "u1", ReceiverID: "u2", Content: "hi"}
	repo.On("CreateMessage", mock.Anything, "u1", "u2", "hi").Return(stored, nil).Once()

	msg, err := router.Send(context.Background(), "u1", "u2", "hi")
	require.NoError(t, err)
	assert.Equal(t, stored, msg)
}
