package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coralcommerce/dispatcher/errs"
)

func newReqFor(url string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	}
}

func TestDoWithRetrySucceedsOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := doWithRetry(context.Background(), srv.Client(), newReqFor(srv.URL))
	assert.NoError(t, err)
}

func TestDoWithRetry4xxIsTerminalNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := doWithRetry(context.Background(), srv.Client(), newReqFor(srv.URL))
	assert.Error(t, err)
	kind, ok := errs.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, errs.PermanentTransport, kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoWithRetry5xxRetriesUpToMax(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := doWithRetry(context.Background(), srv.Client(), newReqFor(srv.URL))
	assert.Error(t, err)
	kind, ok := errs.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, errs.TransientTransport, kind)
	assert.Equal(t, int32(maxSendAttempts), atomic.LoadInt32(&calls))
}

func TestDoWithRetrySucceedsAfterTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := doWithRetry(context.Background(), srv.Client(), newReqFor(srv.URL))
	assert.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
