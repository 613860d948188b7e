package partgethttp

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tanq16/partget/internal/utils"
)

// rangeServer serves data with byte-range support and can inject failures
// for GET requests starting at a given offset.
type rangeServer struct {
	data     []byte
	noRanges bool
	headers  http.Header

	mu sync.Mutex
	// abortAfter sends that many bytes then drops the connection, once
	abortAfter map[int64]int64
	// alwaysFail answers 500 for every GET starting at the offset
	alwaysFail map[int64]bool
	// stall holds GETs open until the client goes away
	stall    bool
	requests []string
}

func newRangeServer(t *testing.T, data []byte) (*rangeServer, *httptest.Server) {
	t.Helper()
	rs := &rangeServer{
		data:       data,
		headers:    http.Header{},
		abortAfter: map[int64]int64{},
		alwaysFail: map[int64]bool{},
	}
	srv := httptest.NewServer(rs)
	t.Cleanup(srv.Close)
	return rs, srv
}

func (s *rangeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for k, v := range s.headers {
		w.Header()[k] = v
	}
	if s.noRanges {
		w.Header().Set("Content-Length", fmt.Sprint(len(s.data)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(s.data)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if r.Method == http.MethodGet && rangeHeader != "" {
		var start, end int64
		fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end)

		s.mu.Lock()
		s.requests = append(s.requests, rangeHeader)
		n, abort := s.abortAfter[start]
		delete(s.abortAfter, start)
		fail := s.alwaysFail[start]
		stall := s.stall
		s.mu.Unlock()

		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if abort || stall {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(s.data)))
			w.Header().Set("Content-Length", fmt.Sprint(end-start+1))
			w.WriteHeader(http.StatusPartialContent)
			w.Write(s.data[start : start+n])
			w.(http.Flusher).Flush()
			if stall {
				<-r.Context().Done()
			}
			panic(http.ErrAbortHandler)
		}
	}
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(s.data))
}

func (s *rangeServer) rangeRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func randomBytes(n int) []byte {
	r := rand.New(rand.NewPCG(42, uint64(n)))
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(r.UintN(256))
	}
	return data
}

func md5Base64(data []byte) string {
	sum := md5.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func testRetryConfig() utils.RetryConfig {
	return utils.RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}
