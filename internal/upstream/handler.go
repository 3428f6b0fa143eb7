package upstream

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quotegate/guardian/internal/circuitbreaker"
)

// Handler exposes the guarded client over HTTP. Requests shaped like
// /proxy/{service}/{path} are fetched through the resilience stack and
// the upstream body is relayed as-is. An open circuit with no cached
// body maps to 503 with a Retry-After header.
func (c *Client) Handler(services map[string]Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, path, ok := splitProxyPath(r.URL.Path)
		if !ok {
			http.Error(w, "expected /proxy/{service}/{path}", http.StatusBadRequest)
			return
		}

		svc, exists := services[name]
		if !exists {
			http.Error(w, "unknown service", http.StatusNotFound)
			return
		}

		c.logger.Info("Proxying request",
			slog.String("upstream", svc.Name),
			slog.String("path", path))

		body, err := c.Fetch(r.Context(), svc, path)
		if err != nil {
			writeFetchError(w, err)
			return
		}

		w.Header().Set("X-Upstream-Service", svc.Name)
		w.Write(body)
	}
}

func splitProxyPath(requestPath string) (service, path string, ok bool) {
	trimmed := strings.TrimPrefix(requestPath, "/proxy/")
	if trimmed == requestPath {
		return "", "", false
	}

	service, path, found := strings.Cut(trimmed, "/")
	if !found || service == "" {
		return "", "", false
	}

	return service, "/" + path, true
}

func writeFetchError(w http.ResponseWriter, err error) {
	var openErr *circuitbreaker.CircuitOpenError
	if errors.As(err, &openErr) {
		if openErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", openErr.RetryAfter.String())
		}
		http.Error(w, "upstream temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		http.Error(w, statusErr.Error(), statusErr.Code)
		return
	}

	http.Error(w, "upstream request failed", http.StatusBadGateway)
}
