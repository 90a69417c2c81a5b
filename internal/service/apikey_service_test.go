package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestAPIKeyService_Generate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAPIKeyRepository(ctrl)
	mockHash := mocks.NewMockHashService(ctrl)
	svc := NewAPIKeyService(mockRepo, mockHash, newTestLogger())

	accountID := uuid.New()
	var stored *domain.APIKey

	mockHash.EXPECT().Hash(gomock.Any()).Return("hashed-key", nil)
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, k *domain.APIKey) error {
			stored = k
			return nil
		})

	key, err := svc.Generate(context.Background(), accountID, "zapier")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "fp_hook_"))
	require.NotNil(t, stored)
	assert.Equal(t, accountID, stored.AccountID)
	assert.Equal(t, "hashed-key", stored.Hash)
	assert.Equal(t, key[:domain.APIKeyPrefixLen], stored.Prefix)
	// The plaintext key never lands in the record.
	assert.NotContains(t, stored.Hash, key)
}

func TestAPIKeyService_Authenticate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAPIKeyRepository(ctrl)
	mockHash := mocks.NewMockHashService(ctrl)
	svc := NewAPIKeyService(mockRepo, mockHash, newTestLogger())

	accountID := uuid.New()
	keyID := uuid.New()
	key := "fp_hook_0123456789abcdef"

	mockRepo.EXPECT().ListByPrefix(gomock.Any(), key[:domain.APIKeyPrefixLen]).
		Return([]domain.APIKey{{ID: keyID, AccountID: accountID, Hash: "stored-hash"}}, nil)
	mockHash.EXPECT().Verify(key, "stored-hash").Return(true, nil)
	mockRepo.EXPECT().TouchLastUsed(gomock.Any(), keyID).Return(nil)

	got, err := svc.Authenticate(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, accountID, got)
}

func TestAPIKeyService_Authenticate_NoMatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAPIKeyRepository(ctrl)
	mockHash := mocks.NewMockHashService(ctrl)
	svc := NewAPIKeyService(mockRepo, mockHash, newTestLogger())

	key := "fp_hook_0123456789abcdef"

	mockRepo.EXPECT().ListByPrefix(gomock.Any(), key[:domain.APIKeyPrefixLen]).
		Return([]domain.APIKey{{ID: uuid.New(), Hash: "other-hash"}}, nil)
	mockHash.EXPECT().Verify(key, "other-hash").Return(false, nil)

	_, err := svc.Authenticate(context.Background(), key)
	assert.Error(t, err)
}

func TestAPIKeyService_Authenticate_TooShort(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := NewAPIKeyService(mocks.NewMockAPIKeyRepository(ctrl), mocks.NewMockHashService(ctrl), newTestLogger())

	_, err := svc.Authenticate(context.Background(), "short")
	assert.Error(t, err)
}

func TestAPIKeyService_Authenticate_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAPIKeyRepository(ctrl)
	svc := NewAPIKeyService(mockRepo, mocks.NewMockHashService(ctrl), newTestLogger())

	mockRepo.EXPECT().ListByPrefix(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused"))

	_, err := svc.Authenticate(context.Background(), "fp_hook_0123456789abcdef")
	assert.Error(t, err)
}
