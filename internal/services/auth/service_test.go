package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/fairway/internal/dependencies/mocks"
	"github.com/mcoot/fairway/internal/model"
)

type ServiceSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.Secret = "test-secret"
	s.service = New(s.clock, cfg)
}

func (s *ServiceSuite) TestIssueAndVerify() {
	token, err := s.service.IssueToken(Principal{UserID: "alice", Email: "alice@example.com"})
	s.Require().NoError(err)
	s.NotEmpty(token)

	p, err := s.service.Verify(token)
	s.Require().NoError(err)
	s.Equal(model.UserID("alice"), p.UserID)
	s.Equal("alice@example.com", p.Email)
}

func (s *ServiceSuite) TestIssueRequiresUserID() {
	_, err := s.service.IssueToken(Principal{Email: "x@example.com"})
	s.ErrorIs(err, model.ErrInvalidInput)
}

func (s *ServiceSuite) TestExpiredTokenRejected() {
	token, err := s.service.IssueToken(Principal{UserID: "alice"})
	s.Require().NoError(err)

	s.clock.Advance(25 * time.Hour)

	_, err = s.service.Verify(token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestWrongSecretRejected() {
	other := New(s.clock, Config{Secret: "other", Issuer: "fairway"})
	token, err := other.IssueToken(Principal{UserID: "alice"})
	s.Require().NoError(err)

	_, err = s.service.Verify(token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestWrongIssuerRejected() {
	other := New(s.clock, Config{Secret: "test-secret", Issuer: "someone-else"})
	token, err := other.IssueToken(Principal{UserID: "alice"})
	s.Require().NoError(err)

	_, err = s.service.Verify(token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestOtherSigningMethodRejected() {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "fairway",
		ExpiresAt: jwt.NewNumericDate(s.clock.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	s.Require().NoError(err)

	_, err = s.service.Verify(signed)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestMissingSubjectRejected() {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "fairway",
		ExpiresAt: jwt.NewNumericDate(s.clock.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	s.Require().NoError(err)

	_, err = s.service.Verify(signed)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestGarbageRejected() {
	_, err := s.service.Verify("not-a-token")
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestVerifyHeader() {
	token, err := s.service.IssueToken(Principal{UserID: "alice"})
	s.Require().NoError(err)

	p, err := s.service.VerifyHeader("Bearer " + token)
	s.Require().NoError(err)
	s.Equal(model.UserID("alice"), p.UserID)

	_, err = s.service.VerifyHeader("")
	s.ErrorIs(err, ErrMissingToken)
	_, err = s.service.VerifyHeader("Basic abc")
	s.ErrorIs(err, ErrMissingToken)
	_, err = s.service.VerifyHeader("Bearer ")
	s.ErrorIs(err, ErrMissingToken)
}
