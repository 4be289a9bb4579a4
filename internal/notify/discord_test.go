package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followers-monitor/internal/config"
	"followers-monitor/pkg/types"
)

func sampleDiff() *types.Diff {
	added := []types.FollowerRecord{{Name: "New One", Username: "new1"}}
	removed := []types.FollowerRecord{
		{Name: "Gone One", Username: "gone1"},
		{Name: "Gone Two", Username: "gone2"},
	}
	return &types.Diff{Added: added, Removed: removed, AddedCount: 1, RemovedCount: 2}
}

func newDiscord(url string) (*Discord, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	cfg := config.Default().Notify
	cfg.WebhookURL = url
	return NewDiscord(cfg, logger), hook
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 8, "hello..."},
		{"multibyte", "ééééééééé", 6, "ééé..."},
		{"tiny bound", "hello", 2, "he"},
		{"zero bound", "hello", 0, ""},
		{"negative bound", "hello", -3, ""},
		{"empty negative bound", "", -1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.input, tt.max)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), max(tt.max, 0))
		})
	}
}

func TestBuildPayload(t *testing.T) {
	d, _ := newDiscord("http://unused")
	payload := d.BuildPayload(sampleDiff())

	assert.Equal(t, "X Followers Monitor", payload.Username)
	require.Len(t, payload.Embeds, 3)

	assert.Equal(t, "❌ 2 Unfollowed", payload.Embeds[0].Title)
	assert.Equal(t, "• Gone One (@gone1)\n• Gone Two (@gone2)", payload.Embeds[0].Description)
	assert.Equal(t, ColorRed, payload.Embeds[0].Color)

	assert.Equal(t, "🎉 1 New Followers", payload.Embeds[1].Title)
	assert.Equal(t, ColorGreen, payload.Embeds[1].Color)

	assert.Equal(t, "📉 Net Loss: -1", payload.Embeds[2].Title)
	assert.Equal(t, ColorRed, payload.Embeds[2].Color)
}

func TestBuildPayloadTruncatesLongLists(t *testing.T) {
	cfg := config.Default().Notify
	cfg.MaxDescriptionLength = 100
	logger, _ := test.NewNullLogger()
	d := NewDiscord(cfg, logger)

	var added []types.FollowerRecord
	for i := 0; i < 50; i++ {
		added = append(added, types.FollowerRecord{Name: "Follower", Username: strings.Repeat("x", 10)})
	}
	payload := d.BuildPayload(&types.Diff{Added: added, AddedCount: len(added)})

	desc := payload.Embeds[0].Description
	assert.Equal(t, 100, utf8.RuneCountInString(desc))
	assert.True(t, strings.HasSuffix(desc, "..."))
	assert.Equal(t, "📈 Net Gain: +50", payload.Embeds[1].Title)
}

func TestNotifyPostsPayload(t *testing.T) {
	var received Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d, hook := newDiscord(server.URL)
	d.Notify(context.Background(), sampleDiff())

	require.Len(t, received.Embeds, 3)
	assert.Equal(t, "Successfully sent notification to Discord.", hook.LastEntry().Message)
}

func TestNotifySkips(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	t.Run("no webhook", func(t *testing.T) {
		d, _ := newDiscord("")
		d.Notify(context.Background(), sampleDiff())
	})
	t.Run("nil diff", func(t *testing.T) {
		d, _ := newDiscord(server.URL)
		d.Notify(context.Background(), nil)
	})
	t.Run("empty diff", func(t *testing.T) {
		d, _ := newDiscord(server.URL)
		d.Notify(context.Background(), &types.Diff{Added: []types.FollowerRecord{}, Removed: []types.FollowerRecord{}})
	})

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestNotifySwallowsDeliveryErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusBadRequest)
	}))
	defer server.Close()

	d, hook := newDiscord(server.URL)
	assert.NotPanics(t, func() { d.Notify(context.Background(), sampleDiff()) })

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Contains(t, entry.Message, "status 400")
}

func TestNotifyUnreachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	d, hook := newDiscord(url)
	d.Notify(context.Background(), sampleDiff())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
}
