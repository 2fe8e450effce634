// Package view renders the application shell and the error page.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var files embed.FS

type Views struct {
	tmpl *template.Template
}

func New() (*Views, error) {
	tmpl, err := template.ParseFS(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("view: parse templates: %w", err)
	}
	return &Views{tmpl: tmpl}, nil
}

// Render executes the named template into a buffer first, so a template
// failure never leaves a half written page behind.
func (v *Views) Render(w http.ResponseWriter, name string, status int, data any) error {
	var buf bytes.Buffer
	if err := v.tmpl.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return fmt.Errorf("view: render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
