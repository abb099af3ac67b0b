package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/testutil"
)

type capturedRequest struct {
	method string
	path   string
	body   string
}

type ArchiveSuite struct {
	suite.Suite
	server   *httptest.Server
	mu       sync.Mutex
	requests []capturedRequest
	status   int
	archiver *S3Archiver
	result   *model.MatchResult
}

func TestArchiveSuite(t *testing.T) {
	suite.Run(t, new(ArchiveSuite))
}

func (s *ArchiveSuite) SetupTest() {
	s.requests = nil
	s.status = http.StatusOK
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.requests = append(s.requests, capturedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		status := s.status
		s.mu.Unlock()
		w.WriteHeader(status)
	}))

	cfg := DefaultConfig()
	cfg.Bucket = "fairway-results"
	cfg.Region = "us-east-1"
	cfg.Endpoint = s.server.URL
	cfg.AccessKeyID = "test"
	cfg.SecretAccessKey = "test"

	archiver, err := NewS3Archiver(context.Background(), cfg, testutil.NopLogger())
	s.Require().NoError(err)
	s.archiver = archiver

	s.result = &model.MatchResult{
		ID:           "r1",
		MatchID:      "m1",
		Title:        "Sunday Round @ Pebble Beach",
		Participants: []model.UserID{"alice"},
		Scores:       model.NewScorecard(model.ScoreCell{Hole: 1, UserID: "alice", Strokes: 4}),
		CreatedAt:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *ArchiveSuite) TearDownTest() {
	s.server.Close()
}

func (s *ArchiveSuite) TestObjectKey() {
	s.Equal("results/sunday-round-at-pebble-beach-m1.json", s.archiver.ObjectKey(s.result))
	s.Equal("results/m2.json", ObjectKey("results", &model.MatchResult{MatchID: "m2", Title: "!!!"}))
}

func (s *ArchiveSuite) TestArchiveUploadsJSON() {
	s.Require().NoError(s.archiver.ArchiveResult(context.Background(), s.result))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().Len(s.requests, 1)
	s.Equal(http.MethodPut, s.requests[0].method)
	s.Equal("/fairway-results/results/sunday-round-at-pebble-beach-m1.json", s.requests[0].path)
	s.Contains(s.requests[0].body, `"matchId":"m1"`)
}

func (s *ArchiveSuite) TestArchiveReportsFailure() {
	s.mu.Lock()
	s.status = http.StatusForbidden
	s.mu.Unlock()

	err := s.archiver.ArchiveResult(context.Background(), s.result)
	s.Error(err)
}

func (s *ArchiveSuite) TestConfigEnabled() {
	s.False(DefaultConfig().Enabled())
	s.True(Config{Bucket: "b"}.Enabled())
}

func (s *ArchiveSuite) TestNopArchiver() {
	s.NoError(NopArchiver{}.ArchiveResult(context.Background(), s.result))
}
