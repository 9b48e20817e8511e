package web

import (
	"net/http"
	"net/url"
)

// Notices replace server-side flash messages: a redirect carries a notice
// code in the query string and the next page renders the matching text.
// Only known codes render, so no request text is ever echoed.
const (
	noticeAlreadyRegistered = "already-registered"
	noticeUnknownEmail      = "unknown-email"
	noticeWrongPassword     = "wrong-password"
	noticeLoginRequired     = "login-required"
)

var notices = map[string]string{
	noticeAlreadyRegistered: "You've already signed up with that email, log in instead!",
	noticeUnknownEmail:      "That email does not exist, please try again.",
	noticeWrongPassword:     "Password incorrect, please try again.",
	noticeLoginRequired:     "Please log in to access this page.",
}

// noticeFrom returns the message for the request's notice code, or "".
func noticeFrom(r *http.Request) string {
	return notices[r.URL.Query().Get("notice")]
}

func withNotice(path, code string) string {
	return path + "?" + url.Values{"notice": {code}}.Encode()
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, path, code string) {
	http.Redirect(w, r, withNotice(path, code), http.StatusFound)
}
