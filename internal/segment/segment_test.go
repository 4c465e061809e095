package segment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(spans []Span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}

func TestRuleSegmenter_Basic(t *testing.T) {
	seg := NewRuleSegmenter()
	text := "Although their name may suggest otherwise, whales are marine mammals. The blue whale can reach a length of up to 30 metres and weigh more than 180 tonnes."

	spans, err := seg.Segment(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Although their name may suggest otherwise, whales are marine mammals.",
		"The blue whale can reach a length of up to 30 metres and weigh more than 180 tonnes.",
	}, texts(spans))

	for _, sp := range spans {
		assert.Equal(t, sp.Text, text[sp.Start:sp.End])
	}
}

func TestRuleSegmenter_Empty(t *testing.T) {
	seg := NewRuleSegmenter()
	for _, in := range []string{"", "   ", "\n\n\t"} {
		spans, err := seg.Segment(context.Background(), in)
		require.NoError(t, err)
		assert.Empty(t, spans, "input %q", in)
	}
}

func TestRuleSegmenter_Abbreviations(t *testing.T) {
	seg := NewRuleSegmenter()
	text := "Dr. Smith measured 3.5 tonnes, e.g. a small whale. It was large!"

	spans, err := seg.Segment(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Dr. Smith measured 3.5 tonnes, e.g. a small whale.",
		"It was large!",
	}, texts(spans))
}

func TestRuleSegmenter_InitialsAndQuotes(t *testing.T) {
	seg := NewRuleSegmenter()
	text := `J. R. R. Tolkien wrote it. He said "Done!" Then he left?! Yes.`

	spans, err := seg.Segment(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"J. R. R. Tolkien wrote it.",
		`He said "Done!"`,
		"Then he left?!",
		"Yes.",
	}, texts(spans))
}

func TestRuleSegmenter_BlankLineAndNoTerminator(t *testing.T) {
	seg := NewRuleSegmenter()
	text := "A heading without a dot\n\nLa Tierra es plana"

	spans, err := seg.Segment(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, []string{"A heading without a dot", "La Tierra es plana"}, texts(spans))
}

func TestRuleSegmenter_ExtraAbbreviation(t *testing.T) {
	seg := NewRuleSegmenter("Approx.", "Bros.")
	spans, err := seg.Segment(context.Background(), "Warner Bros. Pictures released it. Done.")
	require.NoError(t, err)
	assert.Len(t, spans, 2)
}

func TestRuleSegmenter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRuleSegmenter().Segment(ctx, "Some text.")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPSegmenter_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req segmentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "es", req.Language)

		// offsets omitted on purpose
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sentences": []map[string]any{{"text": "Uno."}, {"text": "Dos."}},
		})
	}))
	defer server.Close()

	seg := NewHTTPSegmenter(server.URL, "es", 5*time.Second)
	text := "Uno. Dos."
	spans, err := seg.Segment(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Equal(t, 5, spans[1].Start)
	assert.Equal(t, "Dos.", text[spans[1].Start:spans[1].End])
}

func TestHTTPSegmenter_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPSegmenter(server.URL, "en", time.Second).Segment(context.Background(), "Text.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPSegmenter_EmptyInputSkipsCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	spans, err := NewHTTPSegmenter(server.URL, "en", time.Second).Segment(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, spans)
	assert.False(t, called)
}
