package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zerx-lab/penbridge/internal/errors"
)

const (
	// actionPollInterval is how often the injected action flag is read.
	actionPollInterval = 200 * time.Millisecond

	actionExtract = "extract"
	actionCancel  = "cancel"
)

// Capture statuses reported to callers.
const (
	CaptureSuccess   = "success"
	CaptureCancelled = "cancelled"
)

// CaptureResult is the outcome of an interactive login capture.
type CaptureResult struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Profile *Profile `json:"profile,omitempty"`
}

// CaptureBridge drives interactive logins. It opens a platform's login
// page in a browser window, overlays a small control bar, and waits for
// the user to finish logging in and click extract.
type CaptureBridge struct {
	surface Surface
	store   *Store
	logger  *slog.Logger

	pollInterval time.Duration

	mu     sync.Mutex
	active map[string]bool
}

func NewCaptureBridge(surface Surface, store *Store, logger *slog.Logger) *CaptureBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureBridge{
		surface:      surface,
		store:        store,
		logger:       logger,
		pollInterval: actionPollInterval,
		active:       make(map[string]bool),
	}
}

type captureOutcome struct {
	result *CaptureResult
	err    error
}

// resolver delivers exactly one outcome no matter how many paths race
// to finish the capture.
type resolver struct {
	once sync.Once
	ch   chan captureOutcome
	done chan struct{}
}

func newResolver() *resolver {
	return &resolver{ch: make(chan captureOutcome, 1), done: make(chan struct{})}
}

func (r *resolver) resolve(res *CaptureResult, err error) {
	r.once.Do(func() {
		r.ch <- captureOutcome{result: res, err: err}
		close(r.done)
	})
}

// OpenLoginWindow runs one interactive capture for the platform described
// by spec. It blocks until the user extracts a session, cancels, closes
// the window, or ctx ends. Only one capture per platform runs at a time.
func (b *CaptureBridge) OpenLoginWindow(ctx context.Context, spec LoginSpec) (*CaptureResult, error) {
	if b.surface == nil {
		return nil, errors.NewInvalidRequest("no browser surface available; paste cookies with session import instead")
	}
	if !b.begin(spec.Platform) {
		return nil, errors.NewConflict(fmt.Sprintf("a login capture for %s is already in progress", spec.Platform))
	}
	defer b.end(spec.Platform)

	win, err := b.surface.Open(ctx, spec.LoginURL, spec.Partition)
	if err != nil {
		return nil, errors.NewTransport(fmt.Errorf("open login window: %w", err))
	}
	defer win.Close()

	res := newResolver()
	var pollOnce sync.Once

	win.OnClosed(func() {
		res.resolve(&CaptureResult{Status: CaptureCancelled, Message: "login window closed"}, nil)
	})

	win.OnLoaded(func() {
		// Login flows redirect, so the control bar is re-injected
		// after every navigation. The script is idempotent.
		if _, err := win.ExecuteScript(ctx, controlScript); err != nil {
			b.logger.Warn("control bar injection failed",
				"platform", spec.Platform, "error", err)
		}
		pollOnce.Do(func() {
			go b.poll(ctx, win, spec, res)
		})
	})

	go func() {
		select {
		case <-ctx.Done():
			res.resolve(&CaptureResult{Status: CaptureCancelled, Message: "capture cancelled"}, nil)
		case <-res.done:
		}
	}()

	out := <-res.ch
	if out.err != nil {
		return nil, out.err
	}
	b.logger.Info("login capture finished",
		"platform", spec.Platform, "status", out.result.Status)
	return out.result, nil
}

// poll watches for the user clicking extract or cancel in the control bar.
func (b *CaptureBridge) poll(ctx context.Context, win Window, spec LoginSpec, res *resolver) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-res.done:
			return
		case <-ticker.C:
		}

		if !win.IsAlive() {
			res.resolve(&CaptureResult{Status: CaptureCancelled, Message: "login window closed"}, nil)
			return
		}

		v, err := win.ExecuteScript(ctx, readActionScript)
		if err != nil {
			// Transient during navigations; the next tick retries.
			continue
		}
		action, _ := v.(string)
		switch action {
		case actionExtract:
			b.handleExtract(ctx, win, spec, res)
		case actionCancel:
			res.resolve(&CaptureResult{Status: CaptureCancelled, Message: "login cancelled"}, nil)
			return
		}
	}
}

// handleExtract reads cookies from the window and tries to build and
// persist a credential. An incomplete login shows an inline message and
// leaves the capture running so the user can finish and retry.
func (b *CaptureBridge) handleExtract(ctx context.Context, win Window, spec LoginSpec, res *resolver) {
	var collected []Cookie
	var readErrs []string
	for _, domain := range spec.CookieDomains {
		cookies, err := win.Cookies(ctx, domain)
		if err != nil {
			readErrs = append(readErrs, fmt.Sprintf("%s: %v", domain, err))
			continue
		}
		collected = append(collected, cookies...)
	}
	if len(collected) == 0 {
		b.logger.Warn("cookie extraction returned nothing",
			"platform", spec.Platform, "errors", strings.Join(readErrs, "; "))
		b.showStatus(ctx, win, "could not read cookies, try again")
		return
	}

	cred, err := BuildCredential(spec, collected, time.Now().Unix())
	if err != nil {
		// Most likely the user has not finished logging in yet.
		b.showStatus(ctx, win, userMessage(err))
		return
	}

	if err := b.store.Put(cred); err != nil {
		b.logger.Error("failed to persist session",
			"platform", spec.Platform, "error", err)
		res.resolve(nil, err)
		return
	}

	profile := cred.Profile
	res.resolve(&CaptureResult{
		Status:  CaptureSuccess,
		Message: fmt.Sprintf("logged in to %s", spec.Platform),
		Profile: &profile,
	}, nil)
}

func (b *CaptureBridge) showStatus(ctx context.Context, win Window, msg string) {
	script := fmt.Sprintf(statusScript, jsString(msg))
	if _, err := win.ExecuteScript(ctx, script); err != nil {
		b.logger.Warn("failed to show capture status", "error", err)
	}
}

func (b *CaptureBridge) begin(platform string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active[platform] {
		return false
	}
	b.active[platform] = true
	return true
}

func (b *CaptureBridge) end(platform string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.active, platform)
}

func userMessage(err error) string {
	if be, ok := errors.AsBridgeError(err); ok {
		return be.Message
	}
	return err.Error()
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

// controlScript overlays the extract/cancel bar on the login page.
// It bails early if the bar already exists.
const controlScript = `(() => {
  if (document.getElementById('penbridge-bar')) return true;
  const bar = document.createElement('div');
  bar.id = 'penbridge-bar';
  bar.style.cssText = 'position:fixed;top:0;left:0;right:0;z-index:2147483647;' +
    'display:flex;gap:8px;align-items:center;padding:8px 12px;' +
    'background:#1a1a2e;color:#fff;font:13px sans-serif;';
  const label = document.createElement('span');
  label.textContent = 'penbridge: finish logging in, then click Extract';
  const status = document.createElement('span');
  status.id = 'penbridge-status';
  status.style.cssText = 'color:#ffb3b3;margin-left:8px;';
  const mk = (text, action) => {
    const btn = document.createElement('button');
    btn.textContent = text;
    btn.style.cssText = 'padding:4px 10px;border:0;border-radius:3px;cursor:pointer;';
    btn.addEventListener('click', () => { window.__penbridgeAction = action; });
    return btn;
  };
  bar.appendChild(label);
  bar.appendChild(mk('Extract session', 'extract'));
  bar.appendChild(mk('Cancel', 'cancel'));
  bar.appendChild(status);
  document.body.appendChild(bar);
  return true;
})();`

// readActionScript reads and clears the pending user action.
const readActionScript = `(() => {
  const a = window.__penbridgeAction || null;
  window.__penbridgeAction = null;
  return a;
})();`

// statusScript shows an inline message in the control bar. The verb is
// a JSON-encoded string.
const statusScript = `(() => {
  const el = document.getElementById('penbridge-status');
  if (el) el.textContent = %s;
  return true;
})();`
