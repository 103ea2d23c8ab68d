package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckBlocksOnRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "spam spam spam", in["text"])
		_ = json.NewEncoder(w).Encode(Verdict{Allowed: false, Reason: "spam"})
	}))
	defer srv.Close()

	v := New(srv.URL).Check(context.Background(), "spam spam spam")
	assert.False(t, v.Allowed)
	assert.Equal(t, "spam", v.Reason)
}

func TestCheckAllowsCleanContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Verdict{Allowed: true})
	}))
	defer srv.Close()

	v := New(srv.URL).Check(context.Background(), "feeling a bit better today")
	assert.True(t, v.Allowed)
}

func TestCheckFailsOpenWhenUnconfigured(t *testing.T) {
	v := New("").Check(context.Background(), "anything")
	assert.True(t, v.Allowed)
}

func TestCheckFailsOpenWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	v := New(srv.URL).Check(context.Background(), "anything")
	assert.True(t, v.Allowed)
}

func TestCheckFailsOpenOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := New(srv.URL).Check(context.Background(), "anything")
	assert.True(t, v.Allowed)
}
