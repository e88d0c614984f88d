// Package view holds the embedded HTML templates. Rendering is deliberately
// skeletal: the templates expose feed contents and forms without styling.
package view

import (
	"embed"
	"html/template"
)

//go:embed templates/*.tmpl
var files embed.FS

// Templates parses the embedded template set with the given helper funcs.
func Templates(funcs template.FuncMap) *template.Template {
	return template.Must(template.New("").Funcs(funcs).ParseFS(files, "templates/*.tmpl"))
}
