package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "purchases.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"fanAddress":"a","songId":"song-001"}`+"\n\n"+`{"fanAddress":"b","songId":"song-002"}`+"\n"), 0o644))

	lines, err := readLines(path)
	require.NoError(t, err)
	assert.Equal(t, []purchaseLine{{"a", "song-001"}, {"b", "song-002"}}, lines)
}

func TestReadLines_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "purchases.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\n"), 0o644))

	_, err := readLines(path)
	assert.ErrorContains(t, err, "line 1")
}

func TestSend_ClassifiesResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var l purchaseLine
		_ = json.NewDecoder(r.Body).Decode(&l)
		w.Header().Set("Content-Type", "application/json")
		if l.SongID == "song-001" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"code":"already_purchased"}`))
	}))
	defer srv.Close()

	key, err := send(context.Background(), srv.Client(), srv.URL, purchaseLine{"a", "song-001"})
	require.NoError(t, err)
	assert.Equal(t, "200", key)

	key, err = send(context.Background(), srv.Client(), srv.URL, purchaseLine{"a", "song-002"})
	require.NoError(t, err)
	assert.Equal(t, "400/already_purchased", key)
}

func TestPrintHistogram(t *testing.T) {
	var buf bytes.Buffer
	printHistogram(&buf, map[string]int{"400/already_purchased": 2, "200": 3})
	want := fmt.Sprintf("%-36s %d\n%-36s %d\n", "200", 3, "400/already_purchased", 2)
	assert.Equal(t, want, buf.String())
}
