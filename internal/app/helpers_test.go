package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hackit-tw/recruit/internal/adapters/mq/worker"
	"github.com/hackit-tw/recruit/internal/adapters/repository"
	service "github.com/hackit-tw/recruit/internal/app"
	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/present"
	"github.com/hackit-tw/recruit/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type post struct {
	channel    string
	ref        string
	msgs       []present.Message
	transcript string
}

type fakePoster struct {
	mu      sync.Mutex
	n       int
	posts   []post
	deleted []string
	err     error
}

func (p *fakePoster) Post(_ context.Context, channelID string, msgs []present.Message, transcript string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.n++
	ref := fmt.Sprintf("msg-%d", p.n)
	p.posts = append(p.posts, post{channel: channelID, ref: ref, msgs: msgs, transcript: transcript})
	return ref, nil
}

func (p *fakePoster) Delete(_ context.Context, _ string, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, ref)
	return nil
}

func (p *fakePoster) postsTo(channel string) []post {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []post
	for _, x := range p.posts {
		if x.channel == channel {
			out = append(out, x)
		}
	}
	return out
}

func (p *fakePoster) deletedRefs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}

type sentMail struct {
	kind    string
	appID   string
	outcome model.Outcome
	reason  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *fakeNotifier) NotifyOutcome(_ context.Context, app model.Application, outcome model.Outcome, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: "outcome", appID: app.ID, outcome: outcome, reason: reason})
	return nil
}

func (n *fakeNotifier) NotifyReceived(_ context.Context, app model.Application) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: "received", appID: app.ID})
	return nil
}

func (n *fakeNotifier) mails() []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMail(nil), n.sent...)
}

type fakeTokens map[string]string

func (f fakeTokens) Verify(raw string) (string, error) {
	if id, ok := f[raw]; ok {
		return id, nil
	}
	return "", fmt.Errorf("bad token %q", raw)
}

type fixture struct {
	store    *repository.MemoryStore
	svc      *service.Service
	poster   *fakePoster
	notifier *fakeNotifier
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:    repository.NewMemoryStore(ctx, repository.WithClock(func() time.Time { return fixedNow })),
		poster:   &fakePoster{},
		notifier: &fakeNotifier{},
	}
	base := []service.Option{
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithPoster(f.poster, "apply", "log"),
		service.WithNotifier(f.notifier),
		service.WithWorkerCount(2),
		service.WithWorkerOptions(worker.WithAttempts(2), worker.WithBackoff(time.Millisecond, time.Millisecond)),
	}
	f.svc = service.New(f.store, append(base, opts...)...)
	t.Cleanup(func() { _ = f.store.Close() })
	return f
}

// drain stops the workers after they delivered everything queued so far.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.svc.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func (f *fixture) addStaff(t *testing.T, id string, level int) model.Staff {
	t.Helper()
	st, err := f.store.CreateStaff(context.Background(), model.Staff{
		ID:              id,
		ExternalID:      "ext-" + id,
		Name:            "Staff " + id,
		PermissionLevel: level,
		ActiveStatus:    model.StatusActive,
	})
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	return st
}

func (f *fixture) addApplication(t *testing.T, id string, stage model.Stage, assignee string) model.Application {
	t.Helper()
	app, err := f.store.Create(context.Background(), model.Application{
		ID:        id,
		Applicant: applicant(),
		Stage:     stage,
		Assignee:  assignee,
		EmailHash: model.EmailFingerprint(applicant().Email),
	})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	return app
}

func applicant() model.Applicant {
	return model.Applicant{
		Name:         "Chen Mei",
		Email:        "mei@example.org",
		Phone:        "0912345678",
		SchoolStage:  "university",
		City:         "Taipei",
		Teams:        []string{"design"},
		Introduction: "I like posters.",
	}
}
