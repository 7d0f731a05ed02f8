package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRecaptchaVerifierSendsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("secret") != "s3cret" || r.PostForm.Get("response") != "abc" || r.PostForm.Get("remoteip") != "10.0.0.1" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	v := NewRecaptchaVerifier("s3cret", srv.URL, time.Second)
	if !v.Verify(context.Background(), "abc", "10.0.0.1") {
		t.Fatal("expected success")
	}
}

func TestRecaptchaVerifierFailsClosed(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"success false": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
		},
		"non 2xx": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"success": true}`))
		},
		"malformed body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
		"slow": func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"success": true}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			v := NewRecaptchaVerifier("s", srv.URL, 50*time.Millisecond)
			if v.Verify(context.Background(), "abc", "") {
				t.Fatal("expected failure")
			}
		})
	}
}

func TestRecaptchaVerifierSkipsEmptyToken(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	v := NewRecaptchaVerifier("s", srv.URL, time.Second)
	if v.Verify(context.Background(), "  ", "") {
		t.Fatal("empty token must fail")
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("empty token must not reach the network")
	}
}

func TestRecaptchaVerifierTransportError(t *testing.T) {
	v := NewRecaptchaVerifier("s", "http://127.0.0.1:1/siteverify", 100*time.Millisecond)
	if v.Verify(context.Background(), "abc", "") {
		t.Fatal("transport error must fail closed")
	}
}
