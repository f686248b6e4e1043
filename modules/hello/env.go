package hello

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/vk/devfn/internal/adapter"
)

// Env reports the process environment visible to functions, restricted to
// variables starting with the "prefix" query parameter (default "DEVFN_").
func Env(ctx context.Context, req *http.Request) (*adapter.Response, error) {
	prefix := req.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "DEVFN_"
	}
	env := make(map[string]string)
	for _, e := range os.Environ() {
		k, v, ok := strings.Cut(e, "=")
		if ok && strings.HasPrefix(k, prefix) {
			env[k] = v
		}
	}
	return adapter.JSON(http.StatusOK, env)
}
