package conformance_test

import (
	"bytes"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"slices"
	"testing"
)

// doRequest sends an authenticated request with an optional JSON body to the
// server under test. Callers close the response body.
func doRequest(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode %s %s body: %v", method, path, err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, serverURL+path, payload)
	if err != nil {
		t.Fatalf("build %s %s: %v", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// readJSON decodes a JSON object body and closes it.
func readJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	if err == nil {
		err = json.Unmarshal(raw, &out)
	}
	if err != nil {
		t.Fatalf("decode %d response %q: %v", resp.StatusCode, raw, err)
	}
	return out
}

func mustStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode == expected {
		return
	}
	raw, _ := io.ReadAll(resp.Body)
	t.Fatalf("status = %d, want %d; body=%s", resp.StatusCode, expected, raw)
}

// call performs a request, asserts the status and decodes the JSON body.
func call(t *testing.T, method, path string, body any, expected int) map[string]any {
	t.Helper()
	resp := doRequest(t, method, path, body)
	mustStatus(t, resp, expected)
	return readJSON(t, resp)
}

// assertAPIError checks the error envelope shared by every failing endpoint.
// An empty category skips the category check.
func assertAPIError(t *testing.T, body map[string]any, expectedCategory string) {
	t.Helper()
	assertStringField(t, body, "status", "error")
	assertFieldPresent(t, body, "message")
	assertFieldPresent(t, body, "correlationId")
	if expectedCategory != "" {
		assertStringField(t, body, "category", expectedCategory)
	}
}

// field returns m[key] as a T, reporting a test error when the key is
// missing or holds another JSON type.
func field[T any](t *testing.T, m map[string]any, key string) (T, bool) {
	t.Helper()
	var zero T
	v, ok := m[key]
	if !ok {
		t.Errorf("missing field %q; have %v", key, slices.Sorted(maps.Keys(m)))
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		t.Errorf("field %q is %T, want %T", key, v, zero)
		return zero, false
	}
	return typed, true
}

func assertFieldPresent(t *testing.T, m map[string]any, key string) {
	t.Helper()
	if _, ok := m[key]; !ok {
		t.Errorf("missing field %q; have %v", key, slices.Sorted(maps.Keys(m)))
	}
}

func assertStringField(t *testing.T, m map[string]any, key, expected string) {
	t.Helper()
	if s, ok := field[string](t, m, key); ok && s != expected {
		t.Errorf("%s = %q, want %q", key, s, expected)
	}
}

func assertNumberField(t *testing.T, m map[string]any, key string, expected float64) {
	t.Helper()
	if n, ok := field[float64](t, m, key); ok && n != expected {
		t.Errorf("%s = %v, want %v", key, n, expected)
	}
}

func assertIsArray(t *testing.T, m map[string]any, key string) []any {
	t.Helper()
	a, _ := field[[]any](t, m, key)
	return a
}

func assertIsObject(t *testing.T, m map[string]any, key string) map[string]any {
	t.Helper()
	o, _ := field[map[string]any](t, m, key)
	return o
}

// toObject asserts that an array element is a JSON object.
func toObject(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("element is %T, want object", v)
	}
	return m
}
