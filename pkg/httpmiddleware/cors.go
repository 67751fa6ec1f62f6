package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin access to the API.
type CORSConfig struct {
	// AllowOrigins lists origins permitted to call the API. An empty list
	// or the single entry "*" allows any origin.
	AllowOrigins []string

	// AllowHeaders lists the request headers permitted in preflight. When
	// empty, the headers the browser asked for are echoed back.
	AllowHeaders []string

	// AllowCredentials sets Access-Control-Allow-Credentials and echoes
	// the caller's origin instead of "*", which browsers require for
	// credentialed requests.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header.
	MaxAge int
}

// corsMethods covers the verbs the API routes serve.
const corsMethods = "GET, POST, PUT, DELETE, OPTIONS"

// CORS answers preflight requests and stamps allow-origin headers on
// actual responses. Origins are matched case-insensitively; responses
// vary on Origin so shared caches keep per-origin copies.
func CORS(cfg CORSConfig) Middleware {
	anyOrigin := len(cfg.AllowOrigins) == 0
	allowed := make(map[string]struct{}, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			anyOrigin = true
			continue
		}
		allowed[strings.ToLower(o)] = struct{}{}
	}

	headers := strings.Join(cfg.AllowHeaders, ", ")
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	allowFor := func(origin string) string {
		if !anyOrigin {
			if _, ok := allowed[strings.ToLower(origin)]; !ok {
				return ""
			}
		}
		if cfg.AllowCredentials {
			// "*" is invalid with credentials; echo the caller instead.
			return origin
		}
		if anyOrigin {
			return "*"
		}
		return origin
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			allow := allowFor(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")

				if allow != "" {
					w.Header().Set("Access-Control-Allow-Origin", allow)
					w.Header().Set("Access-Control-Allow-Methods", corsMethods)
					if headers != "" {
						w.Header().Set("Access-Control-Allow-Headers", headers)
					} else if asked := r.Header.Get("Access-Control-Request-Headers"); asked != "" {
						w.Header().Set("Access-Control-Allow-Headers", asked)
					}
					if cfg.AllowCredentials {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
					}
					if maxAge != "" {
						w.Header().Set("Access-Control-Max-Age", maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allow != "" {
				w.Header().Set("Access-Control-Allow-Origin", allow)
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
