package vision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikelihoodScore(t *testing.T) {
	t.Parallel()

	cases := map[string]float64{
		"VERY_LIKELY":   5,
		"LIKELY":        4,
		"POSSIBLE":      3,
		"UNLIKELY":      1,
		"VERY_UNLIKELY": 0,
		"UNKNOWN":       0,
		"":              0,
		" likely ":      4,
	}
	for in, want := range cases {
		assert.Equal(t, want, likelihoodScore(in), "likelihood %q", in)
	}
}

func TestHTTPClassifier_AnalyzeImage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"adult":"UNLIKELY","violence":"POSSIBLE","racy":"VERY_UNLIKELY"}`))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	score, err := c.AnalyzeImage(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, 4.0, score)
}

func TestHTTPClassifier_MaxScore(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"adult":"VERY_LIKELY","violence":"VERY_LIKELY","racy":"VERY_LIKELY"}`))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	score, err := c.AnalyzeImage(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, MaxScore, score)
}

func TestHTTPClassifier_ServerErrorFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	_, err := c.AnalyzeImage(context.Background(), []byte("x"))
	assert.Error(t, err)
}

func TestHTTPClassifier_UnreachableFails(t *testing.T) {
	t.Parallel()

	c := NewHTTPClassifier("http://127.0.0.1:1/doesnotexist", 200*time.Millisecond)
	_, err := c.AnalyzeImage(context.Background(), []byte("x"))
	assert.Error(t, err)
}

func TestHTTPClassifier_EmptyImageFails(t *testing.T) {
	t.Parallel()

	c := NewHTTPClassifier("http://unused", time.Second)
	_, err := c.AnalyzeImage(context.Background(), nil)
	assert.Error(t, err)
}
