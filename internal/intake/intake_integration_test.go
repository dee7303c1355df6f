//go:build integration

package intake_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"idstatus/internal/distribution"
	"idstatus/internal/identity/store"
	"idstatus/internal/intake"
	"idstatus/internal/notify"
	"idstatus/internal/platform/kafka/admin"
	"idstatus/internal/platform/kafka/consumer"
	"idstatus/internal/platform/kafka/producer"
	"idstatus/internal/reconcile"
	"idstatus/internal/resolver"
	"idstatus/internal/routing"
	"idstatus/pkg/platform/upstream"
	"idstatus/pkg/testutil/containers"
)

type PipelineSuite struct {
	suite.Suite
	brokers  []string
	producer *producer.Producer
	upstream *httptest.Server
	store    *store.InMemory
	topics   struct{ inbound, dlq, ownerA, ownerB string }
	cancel   context.CancelFunc
	done     chan error
}

func TestPipelineSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers()

	// resolver and classifier share one fake upstream
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/applications/match", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Nino string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Nino != "RN000004A" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"applicationId": "APP-1"})
	})
	mux.HandleFunc("GET /applications/{ref}/owner", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"owner": "A"})
	})
	s.upstream = httptest.NewServer(mux)
}

func (s *PipelineSuite) TearDownSuite() {
	s.upstream.Close()
}

func (s *PipelineSuite) SetupTest() {
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	s.topics.inbound = "facts-" + suffix
	s.topics.dlq = "facts-dlq-" + suffix
	s.topics.ownerA = "owner-a-" + suffix
	s.topics.ownerB = "owner-b-" + suffix

	p, err := producer.New(s.brokers)
	s.Require().NoError(err)
	s.producer = p
	_, err = admin.EnsureTopics(ctx, p.Client(), 1, 1, s.topics.inbound, s.topics.dlq, s.topics.ownerA, s.topics.ownerB)
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = store.NewInMemory()
	engine := reconcile.New(s.store, resolver.New(upstream.NewClient("resolver", s.upstream.URL)), reconcile.WithLogger(logger))
	notifier := notify.NewKafkaNotifier(p, notify.Topics{OwnerA: s.topics.ownerA, OwnerB: s.topics.ownerB})
	dist := distribution.New(routing.NewHTTPClassifier(upstream.NewClient("classifier", s.upstream.URL)), notifier,
		distribution.WithLogger(logger), distribution.WithPublishRetry(2, 10*time.Millisecond))
	h := intake.NewHandler(engine, dist, p, s.topics.dlq, intake.WithLogger(logger), intake.WithRetry(2, 10*time.Millisecond))

	c, err := consumer.New(consumer.Config{
		Brokers: s.brokers,
		Group:   "idstatus-" + suffix,
		Topics:  []string{s.topics.inbound},
	}, h, consumer.WithLogger(logger))
	s.Require().NoError(err)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() {
		s.done <- c.Run(runCtx)
		c.Close()
	}()
}

func (s *PipelineSuite) TearDownTest() {
	s.cancel()
	<-s.done
	s.producer.Close()
}

func (s *PipelineSuite) publish(key, body string) {
	s.Require().NoError(s.producer.Publish(context.Background(), s.topics.inbound, []byte(key), []byte(body), nil))
}

// readOne consumes the first record from topic.
func (s *PipelineSuite) readOne(topic string) *kgo.Record {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for {
		fetches := client.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "no record on %s", topic)
		if recs := fetches.Records(); len(recs) > 0 {
			return recs[0]
		}
	}
}

func (s *PipelineSuite) TestVerifiedFactNotifiesOwner() {
	s.publish("RN000004A", `{"identityId":"idv-1","subjectId":"a@b.com","nino":"RN000004A","channel":"oidv","vot":"P2"}`)

	rec := s.readOne(s.topics.ownerA)
	var n notify.Notification
	s.Require().NoError(json.Unmarshal(rec.Value, &n))
	s.Equal(notify.Notification{ApplicationReference: "APP-1", EffectiveStatus: "verified", IdentityID: "idv-1"}, n)
	s.Equal("APP-1", string(rec.Key))
	s.Equal(1, s.store.SaveCount())
}

func (s *PipelineSuite) TestInvalidFactIsDeadLettered() {
	s.publish("RN000004A", `{"identityId":"idv-2","nino":"RN000004A"}`)

	rec := s.readOne(s.topics.dlq)
	headers := map[string]string{}
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal(intake.ReasonInvalid, headers["dlq-reason"])
	s.Equal(s.topics.inbound, headers["source-topic"])
	s.Equal(0, s.store.SaveCount())
}
