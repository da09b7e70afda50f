package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zerx-lab/penbridge/internal/errors"
)

// fakeWindow scripts a login window: queued user actions are returned by
// successive action polls, and cookies are served per domain.
type fakeWindow struct {
	mu         sync.Mutex
	alive      bool
	actions    []string
	cookies    map[string][]Cookie
	onLoaded   []func()
	onClosed   []func()
	closedOnce sync.Once
	injections int
	statuses   []string
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{alive: true, cookies: make(map[string][]Cookie)}
}

func (w *fakeWindow) ExecuteScript(ctx context.Context, source string) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch source {
	case controlScript:
		w.injections++
		return true, nil
	case readActionScript:
		if len(w.actions) == 0 {
			return nil, nil
		}
		a := w.actions[0]
		w.actions = w.actions[1:]
		return a, nil
	default:
		w.statuses = append(w.statuses, source)
		return true, nil
	}
}

func (w *fakeWindow) Cookies(ctx context.Context, domain string) ([]Cookie, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cookies[domain], nil
}

func (w *fakeWindow) IsAlive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alive
}

func (w *fakeWindow) Close() {
	w.mu.Lock()
	w.alive = false
	callbacks := append([]func(){}, w.onClosed...)
	w.mu.Unlock()
	w.closedOnce.Do(func() {
		for _, fn := range callbacks {
			fn()
		}
	})
}

func (w *fakeWindow) OnLoaded(fn func()) {
	w.mu.Lock()
	w.onLoaded = append(w.onLoaded, fn)
	w.mu.Unlock()
	fn()
}

func (w *fakeWindow) OnClosed(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onClosed = append(w.onClosed, fn)
}

func (w *fakeWindow) fireLoaded() {
	w.mu.Lock()
	callbacks := append([]func(){}, w.onLoaded...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

func (w *fakeWindow) queueAction(a string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.actions = append(w.actions, a)
}

func (w *fakeWindow) setCookies(domain string, cookies []Cookie) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cookies[domain] = cookies
}

func (w *fakeWindow) injectionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.injections
}

func (w *fakeWindow) lastStatus() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.statuses) == 0 {
		return ""
	}
	return w.statuses[len(w.statuses)-1]
}

type fakeSurface struct {
	win     *fakeWindow
	openErr error

	mu    sync.Mutex
	opens []string
}

func (s *fakeSurface) Open(ctx context.Context, url, partition string) (Window, error) {
	s.mu.Lock()
	s.opens = append(s.opens, url+"|"+partition)
	s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.win, nil
}

func newTestBridge(t *testing.T, surface Surface) (*CaptureBridge, *Store) {
	t.Helper()
	store := newTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bridge := NewCaptureBridge(surface, store, logger)
	bridge.pollInterval = time.Millisecond
	return bridge, store
}

func testSpec() LoginSpec {
	return LoginSpec{
		Platform:        "devcloud",
		LoginURL:        "https://devcloud.dev/login",
		Partition:       "persist:devcloud",
		CookieDomains:   []string{"devcloud.dev", ".devcloud.dev"},
		RequiredCookies: []string{"dc_uid", "dc_skey"},
		Profile: func(cookies map[string]string) Profile {
			return Profile{UserID: cookies["dc_uid"], DisplayName: cookies["dc_nick"]}
		},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestOpenLoginWindow_Success(t *testing.T) {
	win := newFakeWindow()
	win.setCookies("devcloud.dev", []Cookie{
		{Name: "dc_uid", Value: "u-1", Domain: "devcloud.dev"},
		{Name: "dc_nick", Value: "ada", Domain: "devcloud.dev"},
	})
	win.setCookies(".devcloud.dev", []Cookie{
		{Name: "dc_skey", Value: "k-1", Domain: ".devcloud.dev"},
	})
	win.queueAction(actionExtract)

	bridge, store := newTestBridge(t, &fakeSurface{win: win})

	res, err := bridge.OpenLoginWindow(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("OpenLoginWindow() error = %v", err)
	}
	if res.Status != CaptureSuccess {
		t.Fatalf("Status = %q (message %q), want %q", res.Status, res.Message, CaptureSuccess)
	}
	if res.Profile == nil || res.Profile.DisplayName != "ada" {
		t.Errorf("Profile = %+v, want DisplayName ada", res.Profile)
	}

	cred, ok, err := store.Credential(context.Background(), "devcloud")
	if err != nil || !ok {
		t.Fatalf("stored credential: ok = %v, err = %v", ok, err)
	}
	if v, _ := cred.Value("dc_skey"); v != "k-1" {
		t.Errorf("Value(dc_skey) = %q, want %q", v, "k-1")
	}
	if win.IsAlive() {
		t.Error("window still alive after successful capture")
	}
}

func TestOpenLoginWindow_Cancel(t *testing.T) {
	win := newFakeWindow()
	win.queueAction(actionCancel)

	bridge, store := newTestBridge(t, &fakeSurface{win: win})

	res, err := bridge.OpenLoginWindow(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("OpenLoginWindow() error = %v", err)
	}
	if res.Status != CaptureCancelled {
		t.Errorf("Status = %q, want %q", res.Status, CaptureCancelled)
	}
	if _, ok, _ := store.Credential(context.Background(), "devcloud"); ok {
		t.Error("credential stored after cancel")
	}
}

func TestOpenLoginWindow_WindowClosed(t *testing.T) {
	win := newFakeWindow()
	bridge, _ := newTestBridge(t, &fakeSurface{win: win})

	go func() {
		time.Sleep(10 * time.Millisecond)
		win.Close()
	}()

	res, err := bridge.OpenLoginWindow(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("OpenLoginWindow() error = %v", err)
	}
	if res.Status != CaptureCancelled {
		t.Errorf("Status = %q, want %q", res.Status, CaptureCancelled)
	}
	if !strings.Contains(res.Message, "closed") {
		t.Errorf("Message = %q, want mention of the window closing", res.Message)
	}
}

func TestOpenLoginWindow_IncompleteLoginRetries(t *testing.T) {
	win := newFakeWindow()
	win.setCookies("devcloud.dev", []Cookie{
		{Name: "dc_uid", Value: "u-1", Domain: "devcloud.dev"},
	})
	win.queueAction(actionExtract)

	bridge, store := newTestBridge(t, &fakeSurface{win: win})

	done := make(chan struct{})
	var res *CaptureResult
	var err error
	go func() {
		res, err = bridge.OpenLoginWindow(context.Background(), testSpec())
		close(done)
	}()

	waitFor(t, "inline status message", func() bool { return win.lastStatus() != "" })
	if !strings.Contains(win.lastStatus(), "dc_skey") {
		t.Errorf("status script %q should name the missing cookie", win.lastStatus())
	}

	select {
	case <-done:
		t.Fatal("capture resolved on incomplete login, want inline retry")
	default:
	}

	// User finishes logging in and clicks extract again.
	win.setCookies(".devcloud.dev", []Cookie{
		{Name: "dc_skey", Value: "k-2", Domain: ".devcloud.dev"},
	})
	win.queueAction(actionExtract)
	<-done

	if err != nil {
		t.Fatalf("OpenLoginWindow() error = %v", err)
	}
	if res.Status != CaptureSuccess {
		t.Fatalf("Status = %q (message %q), want %q", res.Status, res.Message, CaptureSuccess)
	}
	if _, ok, _ := store.Credential(context.Background(), "devcloud"); !ok {
		t.Error("credential not stored after retry succeeded")
	}
}

func TestOpenLoginWindow_ReinjectsOnNavigation(t *testing.T) {
	win := newFakeWindow()
	bridge, _ := newTestBridge(t, &fakeSurface{win: win})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bridge.OpenLoginWindow(ctx, testSpec())
		close(done)
	}()

	waitFor(t, "initial injection", func() bool { return win.injectionCount() == 1 })
	win.fireLoaded()
	waitFor(t, "re-injection after navigation", func() bool { return win.injectionCount() == 2 })

	cancel()
	<-done
}

func TestOpenLoginWindow_ConcurrentCaptureConflict(t *testing.T) {
	win := newFakeWindow()
	bridge, _ := newTestBridge(t, &fakeSurface{win: win})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bridge.OpenLoginWindow(ctx, testSpec())
		close(done)
	}()

	waitFor(t, "first capture to start", func() bool {
		bridge.mu.Lock()
		defer bridge.mu.Unlock()
		return bridge.active["devcloud"]
	})

	_, err := bridge.OpenLoginWindow(context.Background(), testSpec())
	if err == nil {
		t.Fatal("second OpenLoginWindow() error = nil, want conflict")
	}
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("error = %v, want CONFLICT", err)
	}

	cancel()
	<-done
}

func TestOpenLoginWindow_ContextCancelled(t *testing.T) {
	win := newFakeWindow()
	bridge, _ := newTestBridge(t, &fakeSurface{win: win})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res, err := bridge.OpenLoginWindow(ctx, testSpec())
	if err != nil {
		t.Fatalf("OpenLoginWindow() error = %v", err)
	}
	if res.Status != CaptureCancelled {
		t.Errorf("Status = %q, want %q", res.Status, CaptureCancelled)
	}
}

func TestOpenLoginWindow_NoSurface(t *testing.T) {
	bridge, _ := newTestBridge(t, nil)

	_, err := bridge.OpenLoginWindow(context.Background(), testSpec())
	if err == nil {
		t.Fatal("OpenLoginWindow() error = nil, want invalid request")
	}
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("error = %v, want INVALID_REQUEST", err)
	}
}

func TestOpenLoginWindow_OpenFails(t *testing.T) {
	bridge, _ := newTestBridge(t, &fakeSurface{openErr: fmt.Errorf("webview crashed")})

	_, err := bridge.OpenLoginWindow(context.Background(), testSpec())
	if err == nil {
		t.Fatal("OpenLoginWindow() error = nil, want transport error")
	}
	if !errors.Is(err, errors.ErrTransport) {
		t.Errorf("error = %v, want TRANSPORT", err)
	}
}

func TestResolverResolvesOnce(t *testing.T) {
	res := newResolver()

	var wg sync.WaitGroup
	outcomes := []string{CaptureSuccess, CaptureCancelled, CaptureCancelled}
	for _, status := range outcomes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.resolve(&CaptureResult{Status: status}, nil)
		}()
	}
	wg.Wait()

	<-res.done
	out := <-res.ch
	if out.result == nil {
		t.Fatal("resolved outcome is nil")
	}

	select {
	case extra := <-res.ch:
		t.Errorf("resolver delivered a second outcome: %+v", extra)
	default:
	}
}
