package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bluecarbon-mrv/portal/internal/auth"
	"github.com/bluecarbon-mrv/portal/internal/store"
	"github.com/bluecarbon-mrv/portal/types"
)

var (
	_ AuthProvider      = (*fakeAuth)(nil)
	_ ProfileRepository = (*fakeProfiles)(nil)
	_ NGORepository     = (*fakeNGOs)(nil)
	_ SiteRepository    = (*fakeSites)(nil)
	_ ObjectStore       = (*fakeObjectStore)(nil)
	_ DocumentSigner    = (*fakeObjectStore)(nil)
	_ EventPublisher    = (*fakeEvents)(nil)
)

type credential struct {
	password string
	identity types.Identity
}

// fakeAuth keeps sessions in memory, keyed by token.
type fakeAuth struct {
	mu          sync.Mutex
	credentials map[string]credential
	sessions    map[string]*types.Session
	signOuts    []string
	resets      []string
	getErr      error
	signInErr   error
	signOutErr  error
	resetErr    error
	confirmErr  error
	confirmed   []string
	next        int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		credentials: map[string]credential{},
		sessions:    map[string]*types.Session{},
	}
}

func (f *fakeAuth) addUser(id, email, password string) {
	f.credentials[email] = credential{password: password, identity: types.Identity{ID: id, Email: email}}
}

func (f *fakeAuth) GetSession(_ context.Context, token string) (*types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	session, ok := f.sessions[token]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (f *fakeAuth) SignInWithPassword(_ context.Context, email, password string) (*types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	cred, ok := f.credentials[email]
	if !ok || cred.password != password {
		return nil, auth.ErrInvalidCredentials
	}
	f.next++
	id := strings.Repeat("s", f.next)
	session := &types.Session{ID: id, Token: "token-" + id, Identity: cred.identity}
	f.sessions[session.Token] = session
	copied := *session
	return &copied, nil
}

func (f *fakeAuth) SignOut(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts = append(f.signOuts, token)
	if f.signOutErr != nil {
		return f.signOutErr
	}
	delete(f.sessions, token)
	return nil
}

func (f *fakeAuth) ResetPasswordForEmail(_ context.Context, email, redirectTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets = append(f.resets, email+" -> "+redirectTo)
	return nil
}

func (f *fakeAuth) ConfirmPasswordReset(_ context.Context, token, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed = append(f.confirmed, token)
	return nil
}

func (f *fakeAuth) DismissOnboarding(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, session := range f.sessions {
		if session.ID == sessionID {
			session.OnboardingDismissed = true
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeProfiles struct {
	rows map[string]types.Profile
	err  error
}

func (f *fakeProfiles) GetByUserID(_ context.Context, userID string) (types.Profile, error) {
	if f.err != nil {
		return types.Profile{}, f.err
	}
	profile, ok := f.rows[userID]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}
	return profile, nil
}

type fakeNGOs struct {
	mu        sync.Mutex
	rows      map[string]types.NGO
	existsErr error
	createErr error
}

func newFakeNGOs() *fakeNGOs {
	return &fakeNGOs{rows: map[string]types.NGO{}}
}

func (f *fakeNGOs) ExistsForFieldWorker(_ context.Context, fieldWorkerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.rows[fieldWorkerID]
	return ok, nil
}

func (f *fakeNGOs) GetByFieldWorker(_ context.Context, fieldWorkerID string) (types.NGO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ngo, ok := f.rows[fieldWorkerID]
	if !ok {
		return types.NGO{}, store.ErrNotFound
	}
	return ngo, nil
}

func (f *fakeNGOs) Create(_ context.Context, ngo types.NGO) (types.NGO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return types.NGO{}, f.createErr
	}
	if _, ok := f.rows[ngo.FieldWorkerID]; ok {
		return types.NGO{}, store.ErrAlreadyExists
	}
	ngo.ID = "ngo-" + ngo.FieldWorkerID
	f.rows[ngo.FieldWorkerID] = ngo
	return ngo, nil
}

type fakeSites struct {
	mu        sync.Mutex
	rows      []types.Site
	createErr error
}

func (f *fakeSites) List(_ context.Context, offset, limit int) ([]types.Site, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= len(f.rows) {
		return []types.Site{}, len(f.rows), nil
	}
	end := min(offset+limit, len(f.rows))
	return f.rows[offset:end], len(f.rows), nil
}

func (f *fakeSites) ListByFieldWorker(_ context.Context, fieldWorkerID string) ([]types.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Site
	for _, site := range f.rows {
		if site.FieldWorkerID == fieldWorkerID {
			out = append(out, site)
		}
	}
	return out, nil
}

func (f *fakeSites) Create(_ context.Context, site types.Site) (types.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return types.Site{}, f.createErr
	}
	site.ID = "site-" + strings.Repeat("x", len(f.rows)+1)
	f.rows = append(f.rows, site)
	return site, nil
}

// fakeObjectStore fails every Put whose key contains one of failOn.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	failOn  []string
}

func newFakeObjectStore(failOn ...string) *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, failOn: failOn}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	for _, marker := range f.failOn {
		if strings.Contains(key, marker) {
			return errors.New("storage unavailable")
		}
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) PublicURL(key string) string {
	return "https://cdn.test/bucket/" + key
}

func (f *fakeObjectStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://signed.test/" + key + "?ttl=" + ttl.String(), nil
}

type publishedEvent struct {
	name    string
	payload any
}

type fakeEvents struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (f *fakeEvents) PublishJSON(_ context.Context, event string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, publishedEvent{name: event, payload: v})
	return nil
}

func (f *fakeEvents) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.events))
	for _, e := range f.events {
		names = append(names, e.name)
	}
	return names
}

func pdf(name string, size int64) *types.UploadedFile {
	return &types.UploadedFile{Name: name, MimeType: "application/pdf", SizeBytes: size, Data: []byte("%PDF-1.7")}
}

func png(name string) *types.UploadedFile {
	return &types.UploadedFile{Name: name, MimeType: "image/png", SizeBytes: 4, Data: []byte{0x89, 'P', 'N', 'G'}}
}
