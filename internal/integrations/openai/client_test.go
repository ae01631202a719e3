package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dining-concierge/internal/domain"
)

// ---------------------------------------------------------------------------
// chatURL helper
// ---------------------------------------------------------------------------

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClassifier
// ---------------------------------------------------------------------------

func TestNewClassifier_NilGetter(t *testing.T) {
	_, err := NewClassifier(nil, "/dining-concierge")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClassifier_EmptyPrefix(t *testing.T) {
	_, err := NewClassifier(&fakeGetter{}, " / ")
	require.Error(t, err)
}

func TestNewClassifier_Defaults(t *testing.T) {
	c, err := NewClassifier(&fakeGetter{}, "/dining-concierge/", WithModel(" "))
	require.NoError(t, err)
	require.Equal(t, "https://api.openai.com/v1", c.baseURL)
	require.Equal(t, defaultModel, c.model)
	require.Equal(t, "/dining-concierge/open-ai-token", c.tokenParameterName())
}

// ---------------------------------------------------------------------------
// resolveAPIKey
// ---------------------------------------------------------------------------

// fakeGetter is a minimal paramstore.Getter stub for use within this package.
type fakeGetter struct {
	val    string
	err    error
	onCall func()
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.val, f.err
}

func TestResolveAPIKey_FetchedOnce(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: `{"token":"sk-from-ssm"}`}
	g.onCall = func() { calls++ }
	c, err := NewClassifier(g, "/dining-concierge")
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-from-ssm", key)

	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 1, calls)
}

func TestFetchAPIKey(t *testing.T) {
	cases := []struct {
		name    string
		getter  Getter
		param   string
		want    string
		wantErr string
	}{
		{"json token", &fakeGetter{val: `{"token":"sk-json"}`}, "/p", "sk-json", ""},
		{"missing field", &fakeGetter{val: `{"other":"v"}`}, "/p", "", "API token is empty"},
		{"malformed", &fakeGetter{val: `{"broken`}, "/p", "", "unmarshal"},
		{"getter error", &fakeGetter{err: errors.New("ssm unavailable")}, "/p", "", "ssm unavailable"},
		{"nil getter", nil, "/p", "", "nil"},
		{"empty name", &fakeGetter{val: `{"token":"x"}`}, " ", "", "empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := fetchAPIKeyFromParamStore(context.Background(), tc.getter, tc.param)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, key)
		})
	}
}

// ---------------------------------------------------------------------------
// Classify
// ---------------------------------------------------------------------------

func newTestClassifier(t *testing.T, srv *httptest.Server) *Classifier {
	t.Helper()
	c, err := NewClassifier(
		&fakeGetter{val: `{"token":"sk-test"}`},
		"/dining-concierge",
		WithBaseURL(srv.URL),
		WithModel("gpt-mock"),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func completion(content string) string {
	return `{"choices":[{"index":0,"message":{"role":"assistant","content":` + content + `}}]}`
}

func TestClassify_SlotValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(reqBody), `"name":"concierge_intent"`)
		require.Contains(t, string(reqBody), `"model":"gpt-mock"`)
		require.Contains(t, string(reqBody), "currently asking for the partySize")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(completion(`"{\"intent\":\"provide_slot_value\",\"value\":\" 4 \"}"`)))
	}))
	defer srv.Close()

	c := newTestClassifier(t, srv)
	got, err := c.Classify(context.Background(), domain.ClassifyRequest{Utterance: "four of us", ExpectedSlot: domain.SlotPartySize})
	require.NoError(t, err)
	require.Equal(t, domain.Classification{Intent: domain.IntentProvideSlotValue, Value: "4"}, got)
}

func TestClassify_OtherIntentsDropValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(completion(`"{\"intent\":\"greeting\",\"value\":\"hello\"}"`)))
	}))
	defer srv.Close()

	got, err := newTestClassifier(t, srv).Classify(context.Background(), domain.ClassifyRequest{Utterance: "hello"})
	require.NoError(t, err)
	require.Equal(t, domain.Classification{Intent: domain.IntentGreeting}, got)
}

func TestClassify_UnknownIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(completion(`"{\"intent\":\"book_table\",\"value\":\"\"}"`)))
	}))
	defer srv.Close()

	_, err := newTestClassifier(t, srv).Classify(context.Background(), domain.ClassifyRequest{Utterance: "book it"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown intent")
}

func TestClassify_EmptyUtterance(t *testing.T) {
	c, err := NewClassifier(&fakeGetter{val: `{"token":"sk-test"}`}, "/dining-concierge")
	require.NoError(t, err)
	_, err = c.Classify(context.Background(), domain.ClassifyRequest{Utterance: "  "})
	require.Error(t, err)
}

func TestClassify_UpstreamFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"bad request", 400, `{"error":"bad request"}`, "400"},
		{"rate limited", 429, `{"error":"rate limited"}`, "429"},
		{"server error", 500, `{"error":"internal"}`, "500"},
		{"invalid json", 200, `not-a-json`, "decode response"},
		{"no choices", 200, `{"choices":[]}`, "no choices"},
		{"content not json", 200, completion(`"sure!"`), "decode intent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClassifier(t, srv).Classify(context.Background(), domain.ClassifyRequest{Utterance: "hi"})
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
			if tc.status != 200 {
				var statusErr *HTTPStatusError
				require.ErrorAs(t, err, &statusErr)
				require.Equal(t, tc.status, statusErr.HTTPStatusCode())
			}
		})
	}
}

func TestClassify_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c := newTestClassifier(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Classify(context.Background(), domain.ClassifyRequest{Utterance: "hi"})
	require.Error(t, err)
}

func TestClassify_NetworkError(t *testing.T) {
	c, err := NewClassifier(&fakeGetter{val: `{"token":"sk-test"}`}, "/dining-concierge")
	require.NoError(t, err)
	c.baseURL = "http://127.0.0.1:1"
	c.httpClient = &http.Client{Timeout: 100 * time.Millisecond}

	_, err = c.Classify(context.Background(), domain.ClassifyRequest{Utterance: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}
