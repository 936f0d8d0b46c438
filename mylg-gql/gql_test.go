package mylggql

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	mylgcli "github.com/jazbelrose/mylg-presence/mylg-cli"
	"github.com/tj/assert"
)

type echoResolver struct{}

func (*echoResolver) Schema() string {
	return `
schema { query: Query }
type Query { echo(value: String!): String! }
`
}

func (*echoResolver) Config() *BaseConfig {
	config := NewConfig(mylgcli.NewService("echo"))
	return &config
}

func (*echoResolver) Echo(args struct{ Value string }) string {
	return args.Value
}

func TestAllowIntrospection(t *testing.T) {
	defer func() {
		mylgcli.CommonOpts.Env = ""
		mylgcli.CommonOpts.Console = false
	}()

	for env, want := range map[string]bool{"local": true, "dev": true, "prod": false, "Production": false} {
		mylgcli.CommonOpts.Env = env
		assert.Equal(t, want, AllowIntrospection(), env)
	}

	mylgcli.CommonOpts.Env = "prod"
	mylgcli.CommonOpts.Console = true
	assert.True(t, AllowIntrospection())
}

func TestMount(t *testing.T) {
	mylgcli.CommonOpts.Env = "dev"
	defer func() { mylgcli.CommonOpts.Env = "" }()

	router := chi.NewRouter()
	assert.Nil(t, Mount(router, &echoResolver{}))

	t.Run("query", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := strings.NewReader(`{"query":"{ echo(value: \"hi\") }"}`)
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/graphql", body))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":{"echo":"hi"}}`, w.Body.String())
	})

	t.Run("playground", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graphql", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"/graphql"`)
	})

	t.Run("bad schema", func(t *testing.T) {
		assert.NotNil(t, Mount(chi.NewRouter(), &badResolver{echoResolver: &echoResolver{}}))
	})
}

type badResolver struct{ *echoResolver }

func (*badResolver) Schema() string { return `type Query { missing: String! }` }
