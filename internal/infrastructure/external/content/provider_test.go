package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback_RoleKeyedCopy(t *testing.T) {
	f := NewFallback()

	out, err := f.Generate(context.Background(), Request{Role: "teacher"})
	require.NoError(t, err)
	assert.Equal(t, "Actualización de estudiantes", out.Title)
	assert.Equal(t, "fallback", out.Source)
}

func TestFallback_UnknownRoleGetsParentCopy(t *testing.T) {
	f := NewFallback()

	out, err := f.Generate(context.Background(), Request{Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "Resumen de progreso", out.Title)
}

func newPrimary(baseURL string) *Primary {
	cfg := DefaultPrimaryConfig(baseURL)
	return NewPrimary(cfg)
}

func TestPrimary_DecodesObjectPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/generate", r.URL.Path)
		w.Write([]byte(`{"success":true,"data":{"title":"Hola","body":"Ana completó su actividad"}}`))
	}))
	defer srv.Close()

	out, err := newPrimary(srv.URL).Generate(context.Background(), Request{Role: "parent"})
	require.NoError(t, err)
	assert.Equal(t, "Hola", out.Title)
	assert.Equal(t, "primary", out.Source)
}

func TestPrimary_DecodesQuotedStringPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":"Ana completó su actividad"}`))
	}))
	defer srv.Close()

	out, err := newPrimary(srv.URL).Generate(context.Background(), Request{Role: "parent"})
	require.NoError(t, err)
	assert.Equal(t, "Ana completó su actividad", out.Body)
	assert.Equal(t, "primary", out.Source)
}

func TestPrimary_UnparseableBodyFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`lo siento, no puedo generar eso`))
	}))
	defer srv.Close()

	out, err := newPrimary(srv.URL).Generate(context.Background(), Request{Role: "teacher"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", out.Source)
	assert.Equal(t, "Actualización de estudiantes", out.Title)
}

func TestPrimary_ClientErrorFallsBackWithoutRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	out, err := newPrimary(srv.URL).Generate(context.Background(), Request{Role: "parent"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", out.Source)
	assert.Equal(t, 1, calls)
}

func TestPrimary_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"success":true,"data":{"body":"ok"}}`))
	}))
	defer srv.Close()

	cfg := DefaultPrimaryConfig(srv.URL)
	cfg.APIKey = "secret"
	_, err := NewPrimary(cfg).Generate(context.Background(), Request{Role: "parent"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
}
