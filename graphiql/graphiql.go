// Package graphiql serves the GraphiQL in-browser IDE pointed at a graphql
// endpoint.
package graphiql

import (
	"bytes"
	_ "embed"
	"net/http"
	"text/template"
)

//go:embed graphiql.html
var graphiql string

var templ = template.Must(template.New("graphiql").Parse(graphiql))

// New endpoint is the url where you have your graphql api hosted
func New(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var buffer bytes.Buffer
		if err := templ.Execute(&buffer, endpoint); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(buffer.Bytes())
	}
}
