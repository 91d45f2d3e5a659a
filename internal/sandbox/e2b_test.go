package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"open-lovable/internal/config"
)

func testE2BConfig(apiURL string) config.E2BConfig {
	return config.E2BConfig{
		APIKey:         "e2b_test",
		APIURL:         apiURL,
		Domain:         "e2b.app",
		Template:       "code-interpreter-v1",
		SandboxTimeout: 15 * time.Minute,
		CreateTimeout:  time.Second,
		VitePort:       5173,
	}
}

func TestClientCreateGetKill(t *testing.T) {
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "e2b_test", r.Header.Get("X-API-Key"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/sandboxes":
			_ = json.NewDecoder(r.Body).Decode(&created)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"sandboxID":"sb123","templateID":"code-interpreter-v1","clientID":"c1"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/sandboxes/sb123":
			fmt.Fprint(w, `{"sandboxID":"sb123","templateID":"code-interpreter-v1"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/sandboxes/sb123/timeout":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete && r.URL.Path == "/sandboxes/sb123":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"sandbox not found"}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(testE2BConfig(srv.URL))
	ctx := context.Background()

	info, err := c.Create(ctx, "code-interpreter-v1", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "sb123", info.SandboxID)
	assert.Equal(t, "code-interpreter-v1", created["templateID"])
	assert.EqualValues(t, 900, created["timeout"])

	got, err := c.Get(ctx, "sb123")
	require.NoError(t, err)
	assert.Equal(t, "sb123", got.SandboxID)

	require.NoError(t, c.SetTimeout(ctx, "sb123", time.Minute))
	require.NoError(t, c.Kill(ctx, "sb123"))

	err = c.Kill(ctx, "gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "5173-sb123.e2b.app", c.Host("sb123", 5173))
}

func TestClientUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":401,"message":"Invalid API key"}`)
	}))
	defer srv.Close()

	_, err := NewClient(testE2BConfig(srv.URL)).Create(context.Background(), "base", time.Minute)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "e2b API error 401")
}

func TestIsUnauthorizedMessages(t *testing.T) {
	t.Parallel()
	assert.True(t, IsUnauthorized(errors.New("request failed: 401")))
	assert.True(t, IsUnauthorized(errors.New("Unauthorized access")))
	assert.True(t, IsUnauthorized(errors.New("Invalid API key provided")))
	assert.False(t, IsUnauthorized(errors.New("connection refused")))
	assert.False(t, IsUnauthorized(&APIError{Status: 500}))
}

func TestClientRunCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "python", body["language"])
		assert.Equal(t, "print('hi')", body["code"])

		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"type":"stdout","text":"hi\n","timestamp":1}`)
		fmt.Fprintln(w, `{"type":"stderr","text":"warn\n"}`)
		fmt.Fprintln(w, `{"type":"result","text":"42","is_main_result":true}`)
		fmt.Fprintln(w, `{"type":"end_of_execution"}`)
		fmt.Fprintln(w, `{"type":"stdout","text":"ignored"}`)
	}))
	defer srv.Close()

	var gotID string
	c := NewClient(testE2BConfig("http://unused"), WithCodeURL(func(id string) string {
		gotID = id
		return srv.URL + "/execute"
	}))

	exec, err := c.RunCode(context.Background(), "sb1", "print('hi')")
	require.NoError(t, err)
	assert.Equal(t, "sb1", gotID)
	assert.Equal(t, []string{"hi\n"}, exec.Stdout)
	assert.Equal(t, []string{"warn\n"}, exec.Stderr)
	require.Len(t, exec.Results, 1)
	assert.True(t, exec.Results[0].IsMainResult)
	assert.Nil(t, exec.Error)
	assert.Equal(t, "hi\n42", exec.Text())
}

func TestParseExecutionError(t *testing.T) {
	t.Parallel()
	stream := strings.Join([]string{
		`{"type":"stdout","text":"before"}`,
		`{"type":"error","name":"NameError","value":"name 'x' is not defined","traceback":"..."}`,
		`{"type":"end_of_execution"}`,
	}, "\n")

	exec, err := parseExecution(strings.NewReader(stream))
	require.NoError(t, err)
	require.NotNil(t, exec.Error)
	assert.Equal(t, "NameError: name 'x' is not defined", exec.Error.Error())

	_, err = parseExecution(strings.NewReader("not json\n"))
	assert.Error(t, err)
}

func TestDefaultCodeURL(t *testing.T) {
	t.Parallel()
	c := NewClient(testE2BConfig("https://api.e2b.dev"))
	assert.Equal(t, "https://49999-abc.e2b.app/execute", c.codeURL("abc"))
}
