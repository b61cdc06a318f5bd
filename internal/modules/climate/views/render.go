package views

import (
	"embed"
	"errors"
	"io"
	"io/fs"
	"text/template"
)

//go:embed templates
var viewsFS embed.FS

var indexTmpl *template.Template

// loadTemplatesFromFS loads the index template from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	indexTmpl, err = template.ParseFS(sub, "*.txt")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

type Route struct {
	Path        string
	Description string
}

type IndexData struct {
	Routes []Route
}

func RenderIndex(w io.Writer, data *IndexData) error {
	if indexTmpl == nil {
		return errors.New("index template not loaded: call views.LoadTemplates during startup")
	}
	return indexTmpl.ExecuteTemplate(w, "index.txt", data)
}
