package coordinator

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"formautofill/store"
)

var (
	ErrChallengeDetected = errors.New("anti-automation challenge detected on page")
	ErrFillTimeout       = errors.New("fill timed out")
	ErrNoForms           = errors.New("no forms found on page")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrNoActiveProfile   = errors.New("no active profile")
	ErrRestrictedURL     = errors.New("restricted page")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrPageUnavailable   = errors.New("live page unavailable")
	ErrMirrorFailed      = errors.New("could not update the live page")
)

var restrictedSchemes = []string{"chrome:", "chrome-extension:", "edge:", "about:", "moz-extension:"}

// CheckURL rejects browser system pages, which can never be filled.
func CheckURL(raw string) error {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range restrictedSchemes {
		if strings.HasPrefix(lower, s) {
			return ErrRestrictedURL
		}
	}
	return nil
}

// Message turns a pipeline error into the text shown to the host.
// Unknown errors get a generic message so internals never leak.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrChallengeDetected):
		return "This page presents a CAPTCHA or bot challenge; autofill was stopped before touching any field."
	case errors.Is(err, ErrFillTimeout):
		return "Autofill timed out."
	case errors.Is(err, ErrNoForms):
		return "No forms found on this page."
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, store.ErrNotFound):
		return "Profile not found"
	case errors.Is(err, ErrNoActiveProfile):
		return "No active profile"
	case errors.Is(err, ErrRestrictedURL):
		return "Cannot autofill on browser system pages"
	case errors.Is(err, store.ErrQuotaExceeded):
		return "Storage quota exceeded. Please delete unused profiles."
	case errors.Is(err, store.ErrInvalidProfile):
		return "Invalid profile data"
	case errors.Is(err, ErrUnknownCommand):
		return "Unknown command"
	case errors.Is(err, ErrPageUnavailable):
		return "Could not read the live page."
	case errors.Is(err, context.Canceled):
		return "Autofill was cancelled."
	}
	return "Autofill failed."
}

// hostOf returns the host part of a page URL, or the input when it does not parse.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Hostname()
}
