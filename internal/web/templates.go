package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageIndex    = "index.html"
	pageRegister = "register.html"
	pageLogin    = "login.html"
	pageSecrets  = "secrets.html"
)

// pageData is what every page template receives.
type pageData struct {
	Title    string
	LoggedIn bool
	Notice   string
	Name     string
}

type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	pages := map[string]*template.Template{}
	for _, page := range []string{pageIndex, pageRegister, pageLogin, pageSecrets} {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		pages[page] = t
	}
	return &renderer{pages: pages}, nil
}

// render executes the page into a buffer first so a template failure still
// yields a clean error response.
func (rd *renderer) render(w http.ResponseWriter, status int, page string, data pageData) error {
	t, ok := rd.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	// Past this point the status is sent; a failed write means the client left.
	_, _ = buf.WriteTo(w)
	return nil
}
