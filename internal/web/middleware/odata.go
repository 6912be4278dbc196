package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/formbridge/internal/odata"
)

// ErrorFunc writes an error response for a request the preamble rejected.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error, status int)

// OData guards every request under a form's .svc root:
//
//   - OData-MaxVersion below 4.0 is answered with 404.
//   - Anything except $metadata must ask for JSON through $format or Accept,
//     or it is answered with 406.
//   - An unknown "$" system query option is answered with 501.
//
// Accepted requests get the OData-Version: 4.0 response header.
func OData(fail ErrorFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if max := r.Header.Get("OData-MaxVersion"); !odata.VersionSupported(max) {
				fail(w, r, fmt.Errorf("%w: %s", odata.ErrVersion, max), http.StatusNotFound)
				return
			}

			query := r.URL.Query()
			if !strings.HasSuffix(r.URL.Path, "/$metadata") &&
				!odata.WantsJSON(query.Get("$format"), r.Header.Get("Accept")) {
				fail(w, r, odata.ErrNotAcceptable, http.StatusNotAcceptable)
				return
			}

			if err := odata.CheckOptions(query); err != nil {
				fail(w, r, err, http.StatusNotImplemented)
				return
			}

			w.Header().Set("OData-Version", "4.0")
			next.ServeHTTP(w, r)
		})
	}
}
