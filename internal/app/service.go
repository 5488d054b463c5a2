// Package service orchestrates intake, review actions and their side effects.
package service

import (
	"context"
	"hash/fnv"
	"runtime"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hackit-tw/recruit/internal/adapters/events"
	"github.com/hackit-tw/recruit/internal/adapters/mq/queue"
	"github.com/hackit-tw/recruit/internal/adapters/mq/worker"
	"github.com/hackit-tw/recruit/internal/adapters/repository"
	"github.com/hackit-tw/recruit/internal/domain/access"
	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/present"
	"github.com/hackit-tw/recruit/internal/domain/review"
	"github.com/hackit-tw/recruit/internal/domain/signup"
	"github.com/hackit-tw/recruit/pkg/logger"
	"github.com/hackit-tw/recruit/pkg/metrics"
)

const lockStripes = 64

// Poster publishes rendered messages to a chat channel.
type Poster interface {
	// Post sends msgs in order and returns the ref of the first one. A
	// non-empty transcript is attached as a text file.
	Post(ctx context.Context, channelID string, msgs []present.Message, transcript string) (string, error)
	// Delete removes a message. Deleting a missing message is not an error.
	Delete(ctx context.Context, channelID, ref string) error
}

// Notifier sends applicant-facing mails.
type Notifier interface {
	NotifyOutcome(ctx context.Context, app model.Application, outcome model.Outcome, reason string) error
	NotifyReceived(ctx context.Context, app model.Application) error
}

// TokenVerifier checks applicant form tokens.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// Service implements the review workflow on top of a store.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	engine    *review.Engine
	resolver  access.Resolver
	notifier  Notifier
	poster    Poster
	publisher events.Publisher
	tokens    TokenVerifier
	signup    *signup.Flow
	validate  *validator.Validate

	queue *queue.InMemoryQueue
	pool  *worker.Pool
	locks [lockStripes]sync.Mutex

	// Configuration
	policy        access.Policy
	applyChannel  string
	logChannel    string
	budget        present.Budget
	workerCount   int
	queueSize     int
	workerOpts    []worker.Option
	promotedLevel int
	storeAttempts uint
	storeInterval time.Duration
	storeTimeout  time.Duration
	now           func() time.Time
	newID         func() string

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithPolicy sets the permission thresholds.
func WithPolicy(p access.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithNotifier sets the outbound mail notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithPoster sets the chat channel poster and the channel ids it posts to.
func WithPoster(p Poster, applyChannel, logChannel string) Option {
	return func(s *Service) {
		s.poster = p
		s.applyChannel = applyChannel
		s.logChannel = logChannel
	}
}

// WithPublisher sets the transition event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithTokens sets the applicant form token verifier.
func WithTokens(t TokenVerifier) Option {
	return func(s *Service) { s.tokens = t }
}

// WithSignupFlow enables staff self-registration.
func WithSignupFlow(f *signup.Flow) Option {
	return func(s *Service) { s.signup = f }
}

// WithResolver overrides the store-backed actor resolver.
func WithResolver(r access.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithBudget sets the presenter limits.
func WithBudget(b present.Budget) Option {
	return func(s *Service) { s.budget = b }
}

// WithWorkerCount sets the number of delivery workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the delivery queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerOptions passes options to every delivery worker.
func WithWorkerOptions(opts ...worker.Option) Option {
	return func(s *Service) { s.workerOpts = append(s.workerOpts, opts...) }
}

// WithStoreRetry sets how often a failing store call is tried and the
// first backoff interval between tries.
func WithStoreRetry(attempts uint, interval time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.storeAttempts = attempts
		}
		if interval > 0 {
			s.storeInterval = interval
		}
	}
}

// WithStoreTimeout bounds each store call attempt.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides uuid generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		publisher:     events.NopPublisher{},
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		policy:        access.DefaultPolicy(),
		budget:        present.DefaultBudget(),
		workerCount:   runtime.NumCPU(),
		queueSize:     10_000,
		promotedLevel: 1,
		storeAttempts: defaultStoreAttempts,
		storeInterval: defaultStoreInterval,
		storeTimeout:  defaultStoreTimeout,
		now:           time.Now,
		newID:         uuid.NewString,
		logger:        logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = access.NewStoreResolver(store, repository.ErrNotFound)
	}
	s.engine = review.NewEngine(s.policy)
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	return s
}

// Start launches the delivery workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.pool = worker.NewPool(s.workerCount, s.queue, worker.HandlerFunc(s.deliver), s.workerOpts...)
	s.pool.Start(ctx)
	s.started = true

	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Bool("chat", s.poster != nil),
		logger.Bool("mail", s.notifier != nil),
	)
	return nil
}

// Stop drains queued deliveries and stops the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping service, draining deliveries", logger.Int("queued", s.queue.Len(ctx)))
	err := s.pool.Shutdown(ctx)
	s.started = false
	if cerr := s.publisher.Close(); cerr != nil {
		s.logger.Warn(ctx, "closing event publisher", logger.Error(cerr))
	}
	s.logger.Info(ctx, "service stopped")
	return err
}

// Stats is the payload of the stats endpoint.
type Stats struct {
	Started     bool                `json:"started"`
	ByStage     map[model.Stage]int `json:"by_stage"`
	Total       int                 `json:"total"`
	QueueLength int                 `json:"queue_length"`
	QueueSize   int                 `json:"queue_size"`
	Workers     int                 `json:"workers"`
}

// Stats counts applications per stage and reports the delivery backlog.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	counts, err := s.store.CountByStage(ctx)
	if err != nil {
		return Stats{}, upstream(err)
	}
	total := 0
	byStage := make(map[string]int, len(counts))
	for st, n := range counts {
		total += n
		byStage[string(st)] = n
	}
	metrics.UpdateApplicationsByStage(byStage)

	return Stats{
		Started:     started,
		ByStage:     counts,
		Total:       total,
		QueueLength: s.queue.Len(ctx),
		QueueSize:   s.queue.Capacity(),
		Workers:     s.workerCount,
	}, nil
}

// Search returns applications matching q.
func (s *Service) Search(ctx context.Context, q repository.Query) ([]model.Application, error) {
	apps, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, upstream(err)
	}
	return apps, nil
}

// Get returns one application.
func (s *Service) Get(ctx context.Context, id string) (model.Application, error) {
	app, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Application{}, upstream(err)
	}
	return app, nil
}

// lock serializes writers of one application id in this process.
func (s *Service) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	m := &s.locks[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
