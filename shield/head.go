package shield

import "net/http"

// HeadToGet rewrites HEAD to GET before routing. Storefront health probes
// issue HEAD against pages registered with r.Get(), which chi would
// otherwise answer with 405; net/http strips the response body for HEAD
// on the way out.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		r.Method = http.MethodGet
		next.ServeHTTP(w, r)
	})
}
