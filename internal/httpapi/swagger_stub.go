//go:build !swagger

package httpapi

import "github.com/go-chi/chi/v5"

// SwaggerEnabled reports whether the daemon was built with API docs.
const SwaggerEnabled = false

// MountSwagger leaves the router untouched; the /swagger/ docs for the
// sitecnd message and agent routes need -tags=swagger.
func MountSwagger(chi.Router) {}
