package server

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/blturner/micropub-go/server/storage"
)

// stubVerifier stands in for the token introspection collaborator.
type stubVerifier struct {
	auth Authorization
	err  error
}

func (v *stubVerifier) Verify(ctx context.Context, token string) (Authorization, error) {
	if v.err != nil {
		return Authorization{}, v.err
	}
	return v.auth, nil
}

type mockPosts struct {
	mock.Mock
}

func (m *mockPosts) SavePost(p *storage.Post) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *mockPosts) FindPost(identifier int64) (*storage.Post, error) {
	args := m.Called(identifier)
	if p, ok := args.Get(0).(*storage.Post); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPosts) FindPostAny(identifier int64) (*storage.Post, error) {
	args := m.Called(identifier)
	if p, ok := args.Get(0).(*storage.Post); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPosts) UpdatePostFields(identifier int64, fields map[string]any) error {
	args := m.Called(identifier, fields)
	return args.Error(0)
}

func (m *mockPosts) SoftDeletePost(identifier int64) error {
	args := m.Called(identifier)
	return args.Error(0)
}

func (m *mockPosts) UndeletePost(identifier int64) error {
	args := m.Called(identifier)
	return args.Error(0)
}

func (m *mockPosts) RemovePost(identifier int64) error {
	args := m.Called(identifier)
	return args.Error(0)
}

func (m *mockPosts) CountPosts() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPosts) AttachMedia(p *storage.Post, media *storage.Media) error {
	args := m.Called(p, media)
	return args.Error(0)
}

type mockMedia struct {
	mock.Mock
}

func (m *mockMedia) SaveMedia(media *storage.Media) error {
	args := m.Called(media)
	return args.Error(0)
}

func (m *mockMedia) FindMediaByFile(name string) (*storage.Media, error) {
	args := m.Called(name)
	if media, ok := args.Get(0).(*storage.Media); ok {
		return media, args.Error(1)
	}
	return nil, args.Error(1)
}
