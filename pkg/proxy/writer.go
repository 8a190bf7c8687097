package proxy

import "net/http"

// robotsStrippingWriter removes X-Robots-Tag right before the header is
// sent, whichever handler produced the response, and remembers the status.
type robotsStrippingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newRobotsStrippingWriter(w http.ResponseWriter) *robotsStrippingWriter {
	return &robotsStrippingWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *robotsStrippingWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.Header().Del("X-Robots-Tag")
	if code >= 200 {
		w.wroteHeader = true
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *robotsStrippingWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}

func (w *robotsStrippingWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *robotsStrippingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
