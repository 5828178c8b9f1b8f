package session

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/suite"

	"groundtruth/pkg/platform/sentinel"
)

type FileStoreSuite struct {
	suite.Suite
	dir   string
	store *FileStore
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(FileStoreSuite))
}

func (s *FileStoreSuite) SetupTest() {
	s.dir = s.T().TempDir()
	store, err := NewFileStore(s.dir)
	s.Require().NoError(err)
	s.store = store
}

func (s *FileStoreSuite) TestRoundTrip() {
	ctx := context.Background()

	rec := testRecord("admin")
	s.Require().NoError(s.store.Put(ctx, rec))

	got, err := s.store.Get(ctx, "admin")
	s.Require().NoError(err)
	s.Equal(rec.BearerToken, got.BearerToken)
	s.Require().Len(got.Cookies, 1)
	s.Equal("app_session", got.Cookies[0].Name)
	s.True(rec.CreatedAt.Equal(got.CreatedAt))

	s.Run("missing role is ErrNotFound", func() {
		_, err := s.store.Get(ctx, "warehouse")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("invalidate removes the file, twice is fine", func() {
		s.Require().NoError(s.store.Invalidate(ctx, "admin"))
		s.Require().NoError(s.store.Invalidate(ctx, "admin"))
		_, err := s.store.Get(ctx, "admin")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *FileStoreSuite) TestFilePermissions() {
	if runtime.GOOS == "windows" {
		s.T().Skip("unix permission bits")
	}
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, testRecord("admin")))

	info, err := os.Stat(filepath.Join(s.dir, "session-admin.json"))
	s.Require().NoError(err)
	s.Equal(os.FileMode(0o600), info.Mode().Perm(), "session files hold tokens, keep them private")
}

func (s *FileStoreSuite) TestCorruptFileIsAMiss() {
	ctx := context.Background()
	path := filepath.Join(s.dir, "session-admin.json")
	s.Require().NoError(os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := s.store.Get(ctx, "admin")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, statErr := os.Stat(path)
	s.True(os.IsNotExist(statErr), "corrupt file should be discarded")
}

func (s *FileStoreSuite) TestRoleNameSanitized() {
	ctx := context.Background()
	rec := testRecord("Warehouse Operator/EU")
	s.Require().NoError(s.store.Put(ctx, rec))

	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("session-warehouse-operator-eu.json", entries[0].Name())

	got, err := s.store.Get(ctx, "Warehouse Operator/EU")
	s.Require().NoError(err)
	s.Equal(rec.BearerToken, got.BearerToken)
}
