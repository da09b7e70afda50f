package session

import "context"

// Surface abstracts the embeddable browser a desktop host provides for
// interactive logins. The plain CLI runs without one; session import
// covers that path.
type Surface interface {
	// Open loads url in a new window bound to an isolated storage
	// partition, so platform sessions never share cookie jars.
	Open(ctx context.Context, url, partition string) (Window, error)
}

// Window is one live browser window.
type Window interface {
	// ExecuteScript evaluates JavaScript in the page and returns its result.
	ExecuteScript(ctx context.Context, source string) (any, error)

	// Cookies reads the partition's cookies for a domain, including
	// HttpOnly ones, which page scripts cannot see.
	Cookies(ctx context.Context, domain string) ([]Cookie, error)

	// IsAlive reports whether the window is still open.
	IsAlive() bool

	// Close closes the window. Safe to call more than once.
	Close()

	// OnLoaded registers fn to run after each page load.
	OnLoaded(fn func())

	// OnClosed registers fn to run when the window closes.
	OnClosed(fn func())
}
