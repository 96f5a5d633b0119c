package testutil

import (
	"context"

	"github.com/dgellow/yt-front/internal/audit"
	"github.com/dgellow/yt-front/internal/auth"
	"github.com/dgellow/yt-front/internal/idp"
	"github.com/stretchr/testify/mock"
	"golang.org/x/oauth2"
	ytapi "google.golang.org/api/youtube/v3"
)

// MockProvider is a testify mock of idp.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Type() string {
	return "mock"
}

func (m *MockProvider) AuthURL(state string, scopes []string) string {
	args := m.Called(state, scopes)
	return args.String(0)
}

func (m *MockProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth2.Token), args.Error(1)
}

func (m *MockProvider) RefreshToken(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth2.Token), args.Error(1)
}

func (m *MockProvider) UserInfo(ctx context.Context, token *oauth2.Token) (*idp.UserInfo, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idp.UserInfo), args.Error(1)
}

// MockStorage is a testify mock of storage.Storage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) UpsertCredentials(ctx context.Context, identity auth.Identity, rec *auth.TokenRecord) error {
	args := m.Called(ctx, identity, rec)
	return args.Error(0)
}

func (m *MockStorage) FindCredentials(ctx context.Context, identity auth.Identity) (*auth.TokenRecord, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.TokenRecord), args.Error(1)
}

func (m *MockStorage) RecordEvent(ctx context.Context, event audit.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockStorage) RecentEvents(ctx context.Context, identity auth.Identity, limit int) ([]audit.Event, error) {
	args := m.Called(ctx, identity, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.Event), args.Error(1)
}

func (m *MockStorage) Close() error {
	return nil
}

// MockYouTube is a testify mock of youtube.API
type MockYouTube struct {
	mock.Mock
}

func (m *MockYouTube) GetVideo(ctx context.Context, creds auth.Credentials, videoID string) (*ytapi.Video, error) {
	args := m.Called(ctx, creds, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ytapi.Video), args.Error(1)
}

func (m *MockYouTube) AddComment(ctx context.Context, creds auth.Credentials, videoID, text string) (*ytapi.CommentThread, error) {
	args := m.Called(ctx, creds, videoID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ytapi.CommentThread), args.Error(1)
}

func (m *MockYouTube) UpdateTitle(ctx context.Context, creds auth.Credentials, videoID, title string) (*ytapi.Video, error) {
	args := m.Called(ctx, creds, videoID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ytapi.Video), args.Error(1)
}

func (m *MockYouTube) DeleteComment(ctx context.Context, creds auth.Credentials, commentID string) error {
	args := m.Called(ctx, creds, commentID)
	return args.Error(0)
}
