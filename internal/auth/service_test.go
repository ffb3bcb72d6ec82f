package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	kvmemory "ragchat/internal/kv/memory"
	"ragchat/internal/logger"
	"ragchat/internal/notify"
	"ragchat/internal/storage"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) subjects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, m := range n.sent {
		out[i] = m.Subject
	}
	return out
}

type fixture struct {
	svc      *Service
	users    storage.UserRepo
	docs     storage.DocumentRepo
	resets   *kvmemory.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.OpenMemory()
	require.NoError(t, err)
	log := logger.Nop()
	f := &fixture{
		users:    storage.NewUserRepo(db, log),
		docs:     storage.NewDocumentRepo(db, log),
		resets:   kvmemory.NewStore(),
		notifier: &recordingNotifier{},
	}
	f.svc = NewService(f.users, f.docs, f.resets, f.notifier, Options{
		JWTSecret:   "test-secret-0123456789",
		FrontendURL: "http://localhost:3000",
	}, log)
	return f
}

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.Signup(ctx, "alice", "Alice@Example.com", "secret1"))
	assert.ErrorIs(t, f.svc.Signup(ctx, "alice", "other@example.com", "secret1"), ErrUserExists)
	assert.ErrorIs(t, f.svc.Signup(ctx, "alice2", "alice@example.com", "secret1"), ErrEmailTaken)
	assert.ErrorIs(t, f.svc.Signup(ctx, "a/b", "ab@example.com", "secret1"), ErrInvalidUsername)
	assert.ErrorIs(t, f.svc.Signup(ctx, "carol", "not-an-email", "secret1"), ErrInvalidEmail)
	assert.ErrorIs(t, f.svc.Signup(ctx, "carol", "carol@example.com", "123"), ErrWeakPassword)

	u, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 50, u.QueryQuota)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	_, err = f.svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := f.svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	sub, err := f.svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)

	assert.Equal(t, []string{"Welcome to RAG PDF Chat!"}, f.notifier.subjects())
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.Signup(ctx, "alice", "alice@example.com", "secret1"))

	issued := time.Now().Add(-48 * time.Hour)
	f.svc.WithClock(func() time.Time { return issued })
	token, err := f.svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	f.svc.WithClock(time.Now)

	_, err = f.svc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	other := &tokenManager{secret: []byte("another-secret-abcdef"), ttl: time.Hour, now: time.Now}
	foreign, err := other.issue("alice")
	require.NoError(t, err)
	_, err = f.svc.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.svc.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNotificationFailureDoesNotFailSignup(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")
	require.NoError(t, f.svc.Signup(context.Background(), "bob", "bob@example.com", "secret1"))
	assert.Len(t, f.notifier.subjects(), 1)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.Signup(ctx, "alice", "alice@example.com", "secret1"))

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, "alice", "bad", "newpass1"), ErrIncorrectPassword)
	require.NoError(t, f.svc.ChangePassword(ctx, "alice", "secret1", "newpass1"))

	_, err := f.svc.Login(ctx, "alice", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "alice", "newpass1")
	require.NoError(t, err)
	assert.Contains(t, f.notifier.subjects(), "Password Changed")
}

func TestResetFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.Signup(ctx, "alice", "alice@example.com", "secret1"))

	msg, err := f.svc.RequestReset(ctx, "unknown@example.com")
	require.NoError(t, err)
	assert.Equal(t, ResetRequestedMessage, msg)
	assert.Equal(t, 0, f.resets.Len())

	msg, err = f.svc.RequestReset(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, ResetRequestedMessage, msg)

	var link string
	for _, m := range f.notifier.sent {
		if m.Subject == "Password Reset Request" {
			link = m.Body
		}
	}
	require.NotEmpty(t, link)
	_, after, found := strings.Cut(link, "token=")
	require.True(t, found)
	token := after[:strings.IndexAny(after, "\"<")]

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "bogus", "newpass1"), ErrInvalidResetToken)
	require.NoError(t, f.svc.ResetPassword(ctx, token, "newpass1"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "again12"), ErrInvalidResetToken)

	_, err = f.svc.Login(ctx, "alice", "newpass1")
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.Signup(ctx, "alice", "alice@example.com", "secret1"))
	require.NoError(t, f.svc.Signup(ctx, "bob", "bob@example.com", "secret1"))

	_, err := f.svc.UpdateProfile(ctx, "alice", "bob", "")
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = f.svc.UpdateProfile(ctx, "alice", "", "bob@example.com")
	assert.ErrorIs(t, err, ErrEmailTaken)

	name, err := f.svc.UpdateProfile(ctx, "alice", "alicia", "alicia@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alicia", name)

	p, err := f.svc.Profile(ctx, "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia@example.com", p.Email)
	assert.Equal(t, 50, p.QueryQuota)

	_, err = f.svc.Profile(ctx, "alice")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, f.docs.SaveDocument(ctx, "bob", domain.DocumentInfo{Name: "a.pdf", Chunks: 1}))
	_, err = f.svc.UpdateProfile(ctx, "bob", "robert", "")
	assert.ErrorIs(t, err, ErrRenameWithDocs)
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(ErrEmailTaken))
	assert.False(t, IsUserError(errors.New("db down")))
}
