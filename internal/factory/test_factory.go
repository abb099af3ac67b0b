package factory

import (
	"time"

	"github.com/mcoot/fairway/internal/config"
	"github.com/mcoot/fairway/internal/dependencies/mocks"
	"github.com/mcoot/fairway/internal/events"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/services/auth"
	"github.com/mcoot/fairway/internal/storage/memory"
	"github.com/mcoot/fairway/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Memory     *memory.Storage
	Events     *events.Recorder
}

// NewTestApp creates an App on the memory store with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithConfig(config.Default())
}

// NewTestAppWithConfig is NewTestApp with custom configuration. The storage
// settings in cfg are ignored.
func NewTestAppWithConfig(cfg config.Config) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	store := memory.New(memory.WithClock(mockClock))
	recorder := &events.Recorder{}

	app, err := newWithDependencies(dependencies{
		store:    store,
		archiver: nil,
		clock:    mockClock,
		random:   mockRandom,
		extra:    []events.Publisher{recorder},
	}, cfg, testutil.NopLogger())
	if err != nil {
		panic(err)
	}

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Memory:     store,
		Events:     recorder,
	}
}

// Token issues a bearer token for a user, valid against the mock clock
func (t *TestApp) Token(id model.UserID, email string) string {
	token, err := t.AuthService.IssueToken(auth.Principal{UserID: id, Email: email})
	if err != nil {
		panic(err)
	}
	return token
}
