package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/supergoodsystems/pii-scrub/pkg/meta"
)

// Scrubber scrubs JSON events with the rules of a config document.
// *piiscrub.Service implements it.
type Scrubber interface {
	ScrubEventJSON(doc, body []byte) ([]byte, *meta.Meta, error)
}

// Observed is a response seen by Observe.
type Observed struct {
	Request *http.Request
	Status  int
	// Body is the scrubbed response body, nil unless the handler wrote JSON
	Body []byte
	Meta *meta.Meta
}

type ResponseObserver struct {
	http.ResponseWriter
	Status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (o *ResponseObserver) Write(p []byte) (n int, err error) {
	if !o.wroteHeader {
		o.WriteHeader(http.StatusOK)
	}
	n, err = o.ResponseWriter.Write(p)
	o.body.Write(p[:n])
	return
}

// WriteHeader records and forwards the first status only. Later calls are
// dropped like the server would drop them.
func (o *ResponseObserver) WriteHeader(code int) {
	if o.wroteHeader {
		return
	}
	o.wroteHeader = true
	o.Status = code
	o.ResponseWriter.WriteHeader(code)
}

// Observe returns middleware that passes responses through untouched and
// hands sink a copy of each one with its JSON body scrubbed by the rules of
// doc. Scrub failures go to onError and the copy is sent without a body.
func Observe(s Scrubber, doc []byte, sink func(Observed), onError func(error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			o := &ResponseObserver{ResponseWriter: w, Status: http.StatusOK}
			next.ServeHTTP(o, r)

			seen := Observed{Request: r, Status: o.Status}
			if body := o.body.Bytes(); json.Valid(body) {
				scrubbed, m, err := s.ScrubEventJSON(doc, body)
				if err != nil {
					if onError != nil {
						onError(err)
					}
				} else {
					seen.Body, seen.Meta = scrubbed, m
				}
			}
			sink(seen)
		})
	}
}
