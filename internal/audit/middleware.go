package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/obs"
)

// Recorder writes an Entry for every state-changing request it wraps. Reads
// are not audited.
type Recorder struct {
	Service *Service
	// OnError receives persistence failures. The response is never affected.
	OnError func(error)
}

// Middleware audits requests against resource. idParam names the chi URL
// parameter holding the resource id, if any.
func (rec Recorder) Middleware(resource, idParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rec.Service == nil || r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			actor, _ := common.CustomerID(r.Context())
			e := Entry{
				ActorID:   actor,
				Resource:  resource,
				Method:    r.Method,
				Path:      r.URL.Path,
				Status:    status,
				ClientIP:  common.ClientIP(r),
				RequestID: middleware.GetReqID(r.Context()),
			}
			if route := obs.RoutePattern(r); route != "unknown" {
				e.Action = r.Method + " " + route
			}
			if idParam != "" {
				e.ResourceID = chi.URLParam(r, idParam)
			}
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
			defer cancel()
			if err := rec.Service.Record(ctx, e); err != nil {
				if rec.OnError != nil {
					rec.OnError(err)
				} else {
					rec.Service.Log.Error().Err(err).Str("path", e.Path).Msg("audit record failed")
				}
			}
		})
	}
}
