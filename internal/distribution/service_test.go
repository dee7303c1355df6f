package distribution

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"idstatus/internal/distribution/mocks"
	"idstatus/internal/identity/models"
	"idstatus/internal/notify"
	"idstatus/internal/routing"
	id "idstatus/pkg/domain"
	dErrors "idstatus/pkg/domain-errors"
	"idstatus/pkg/platform/upstream"
)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	classifier *mocks.MockClassifier
	notifier   *mocks.MockNotifier
	service    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.classifier = mocks.NewMockClassifier(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.service = New(s.classifier, s.notifier, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func verifiedRecord() *models.IdentityRecord {
	return &models.IdentityRecord{
		ID:                   id.NewRecordID(),
		Nino:                 "RN000004A",
		SubjectID:            "a@b.com",
		ApplicationReference: "APP-1",
		ConfidenceLevel:      models.ConfidenceMedium,
	}
}

func (s *ServiceSuite) TestGating() {
	cases := map[string]*models.IdentityRecord{
		"nil record":        nil,
		"low confidence":    {ApplicationReference: "APP-1", ConfidenceLevel: models.ConfidenceLow},
		"no reference":      {ConfidenceLevel: models.ConfidenceMedium},
		"legacy unverified": {ApplicationReference: "APP-1", VerificationStatus: "pending"},
	}
	for name, record := range cases {
		s.Run(name, func() {
			owners, err := s.service.Distribute(context.Background(), record, "idv-1")
			s.NoError(err)
			s.Empty(owners)
		})
	}
}

func (s *ServiceSuite) TestLegacyVerifiedStatusDistributes() {
	record := &models.IdentityRecord{ApplicationReference: "APP-1", VerificationStatus: models.StatusVerified}
	s.classifier.EXPECT().Classify(gomock.Any(), id.ApplicationReference("APP-1")).Return(routing.OwnerB, nil)
	s.notifier.EXPECT().Notify(gomock.Any(), routing.OwnerB, gomock.Any()).Return(nil)

	owners, err := s.service.Distribute(context.Background(), record, "idv-1")
	s.Require().NoError(err)
	s.Equal([]routing.Owner{routing.OwnerB}, owners)
}

func (s *ServiceSuite) TestSingleOwner() {
	record := verifiedRecord()
	s.classifier.EXPECT().Classify(gomock.Any(), id.ApplicationReference("APP-1")).Return(routing.OwnerA, nil).Times(1)
	s.notifier.EXPECT().Notify(gomock.Any(), routing.OwnerA, notify.Notification{
		ApplicationReference: "APP-1",
		EffectiveStatus:      models.StatusVerified,
		IdentityID:           "idv-1",
	}).Return(nil)

	owners, err := s.service.Distribute(context.Background(), record, "idv-1")
	s.Require().NoError(err)
	s.Equal([]routing.Owner{routing.OwnerA}, owners)
}

func (s *ServiceSuite) TestUnroutedNotifiesBoth() {
	record := verifiedRecord()
	s.classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(routing.Unrouted, nil).Times(1)

	var mu sync.Mutex
	seen := map[routing.Owner]int{}
	s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, owner routing.Owner, _ notify.Notification) error {
			mu.Lock()
			defer mu.Unlock()
			seen[owner]++
			return nil
		}).Times(2)

	owners, err := s.service.Distribute(context.Background(), record, "idv-1")
	s.Require().NoError(err)
	s.ElementsMatch([]routing.Owner{routing.OwnerA, routing.OwnerB}, owners)
	s.Equal(map[routing.Owner]int{routing.OwnerA: 1, routing.OwnerB: 1}, seen)
}

func (s *ServiceSuite) TestClassifierTransportFailureAborts() {
	record := verifiedRecord()
	s.classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).
		Return(routing.Owner(""), &upstream.TransportError{Service: "classifier", StatusCode: 503})

	owners, err := s.service.Distribute(context.Background(), record, "idv-1")
	s.Require().Error(err)
	s.Nil(owners)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestClassifierMalformedIsInternal() {
	record := verifiedRecord()
	s.classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).
		Return(routing.Owner(""), &upstream.MalformedResponseError{Service: "classifier", Err: errors.New("bad owner")})

	_, err := s.service.Distribute(context.Background(), record, "idv-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestPublishFailurePropagates() {
	record := verifiedRecord()
	publishErr := errors.New("broker down")
	s.classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(routing.OwnerB, nil)
	s.notifier.EXPECT().Notify(gomock.Any(), routing.OwnerB, gomock.Any()).Return(publishErr)

	_, err := s.service.Distribute(context.Background(), record, "idv-1")
	s.Require().Error(err)
	s.ErrorIs(err, publishErr)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestUnroutedPartialFailure() {
	record := verifiedRecord()
	publishErr := errors.New("broker down")
	s.classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(routing.Unrouted, nil)
	s.notifier.EXPECT().Notify(gomock.Any(), routing.OwnerA, gomock.Any()).Return(nil).Times(1)
	s.notifier.EXPECT().Notify(gomock.Any(), routing.OwnerB, gomock.Any()).Return(publishErr)

	owners, err := s.service.Distribute(context.Background(), record, "idv-1")
	s.ErrorIs(err, publishErr)
	s.Equal([]routing.Owner{routing.OwnerA}, owners)
}

func (s *ServiceSuite) TestPublishRetriedPerOwner() {
	service := New(s.classifier, s.notifier,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPublishRetry(3, 0),
	)
	record := verifiedRecord()
	s.classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(routing.Unrouted, nil).Times(1)
	s.notifier.EXPECT().Notify(gomock.Any(), routing.OwnerA, gomock.Any()).Return(nil).Times(1)
	gomock.InOrder(
		s.notifier.EXPECT().Notify(gomock.Any(), routing.OwnerB, gomock.Any()).Return(errors.New("not leader")),
		s.notifier.EXPECT().Notify(gomock.Any(), routing.OwnerB, gomock.Any()).Return(nil),
	)

	owners, err := service.Distribute(context.Background(), record, "idv-1")
	s.Require().NoError(err)
	s.Equal([]routing.Owner{routing.OwnerA, routing.OwnerB}, owners)
}

func (s *ServiceSuite) TestPublishRetryExhausted() {
	service := New(s.classifier, s.notifier,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPublishRetry(2, 0),
	)
	record := verifiedRecord()
	s.classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(routing.OwnerA, nil).Times(1)
	s.notifier.EXPECT().Notify(gomock.Any(), routing.OwnerA, gomock.Any()).Return(errors.New("broker down")).Times(2)

	owners, err := service.Distribute(context.Background(), record, "idv-1")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Empty(owners)
}

func (s *ServiceSuite) TestClassifierNeverRetried() {
	service := New(s.classifier, s.notifier,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPublishRetry(5, 0),
	)
	s.classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).
		Return(routing.Owner(""), &upstream.TransportError{Service: "classifier", StatusCode: 502}).Times(1)

	_, err := service.Distribute(context.Background(), verifiedRecord(), "idv-1")
	s.Error(err)
}
