// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package suggest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citation-engine/internal/apierr"
	"github.com/pdiddy/citation-engine/internal/llm"
)

type fakeProvider struct {
	reply string
	err   error
	got   llm.Request
	delay time.Duration
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.got = req
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", apierr.FromTransport("fake", "complete", ctx.Err())
		case <-time.After(f.delay):
		}
	}
	return f.reply, f.err
}

const paragraph = "Transformers replaced recurrence with self-attention and now dominate sequence modelling."

func TestParseJSON(t *testing.T) {
	raw := "```json\n" + `{"ideas":[
		{"title":"Attention Is All You Need","authors":["Ashish Vaswani","Noam Shazeer"],"year":2017,"url":"https://arxiv.org/abs/1706.03762","topic":"transformers","relevance":"introduces the architecture","confidence":0.9},
		{"title":"  ","authors":"Nobody"},
		{"title":"BERT: Pre-training of Deep Bidirectional Transformers","authors":"Jacob Devlin, Ming-Wei Chang and Kenton Lee","year":"2019"}
	]}` + "\n```"

	p := Parse(raw)
	assert.Equal(t, ParseOK, p.Status)
	require.Len(t, p.Ideas, 2)

	assert.Equal(t, "Attention Is All You Need", p.Ideas[0].Title)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, p.Ideas[0].Authors)
	assert.Equal(t, 2017, p.Ideas[0].Year)
	assert.Equal(t, "https://arxiv.org/abs/1706.03762", p.Ideas[0].URL)
	assert.InDelta(t, 0.9, p.Ideas[0].Confidence, 1e-9)

	assert.Equal(t, []string{"Jacob Devlin", "Ming-Wei Chang", "Kenton Lee"}, p.Ideas[1].Authors)
	assert.Equal(t, 2019, p.Ideas[1].Year)
	assert.Equal(t, raw, p.Raw)
}

func TestParseJSONWithProse(t *testing.T) {
	raw := `Here are my suggestions: {"ideas": [{"title": "Deep Residual Learning for Image Recognition", "year": 2016}]} Hope this helps!`
	p := Parse(raw)
	assert.Equal(t, ParseOK, p.Status)
	require.Len(t, p.Ideas, 1)
	assert.Equal(t, 2016, p.Ideas[0].Year)
}

func TestParseBareArray(t *testing.T) {
	p := Parse(`[{"title":"Mastering the game of Go with deep neural networks and tree search","arxiv_url":"N/A"}]`)
	assert.Equal(t, ParseOK, p.Status)
	require.Len(t, p.Ideas, 1)
	assert.Equal(t, "N/A", p.Ideas[0].URL)
}

func TestParseDropsOnlyTheBadIdea(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"envelope", `{"ideas": [{"title": "Attention Is All You Need"}, {"title": "Bad", "topic": 3}, {"title": "Deep Residual Learning"}]}`},
		{"bare array", `[{"title": "Attention Is All You Need"}, {"title": "Bad", "topic": 3}, {"title": "Deep Residual Learning"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.raw)
			assert.Equal(t, ParseOK, p.Status)
			require.Len(t, p.Ideas, 2)
			assert.Equal(t, "Attention Is All You Need", p.Ideas[0].Title)
			assert.Equal(t, "Deep Residual Learning", p.Ideas[1].Title)
		})
	}
}

func TestParseEmptyIdeasIsOK(t *testing.T) {
	p := Parse(`{"ideas": []}`)
	assert.Equal(t, ParseOK, p.Status)
	assert.Empty(t, p.Ideas)
}

func TestParseLineFormat(t *testing.T) {
	raw := `1. Title: Attention Is All You Need
Year: 2017
Arxiv URL: https://arxiv.org/abs/1706.03762
Authors: Ashish Vaswani, Noam Shazeer, et al.
Relevance: Introduces the Transformer.

Title: **Sequence to Sequence Learning with Neural Networks**
Year: 2014 (NeurIPS)
Authors: Ilya Sutskever; Oriol Vinyals`

	p := Parse(raw)
	assert.Equal(t, ParseOK, p.Status)
	require.Len(t, p.Ideas, 2)
	assert.Equal(t, "Attention Is All You Need", p.Ideas[0].Title)
	assert.Equal(t, "https://arxiv.org/abs/1706.03762", p.Ideas[0].URL)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, p.Ideas[0].Authors)
	assert.Equal(t, "Sequence to Sequence Learning with Neural Networks", p.Ideas[1].Title)
	assert.Equal(t, 2014, p.Ideas[1].Year)
	assert.Equal(t, []string{"Ilya Sutskever", "Oriol Vinyals"}, p.Ideas[1].Authors)
}

func TestParseMalformed(t *testing.T) {
	tests := []string{
		"",
		"I'm sorry, I cannot help with that.",
		`{"ideas": [{"title": "unterminated`,
	}
	for _, raw := range tests {
		p := Parse(raw)
		assert.Equal(t, ParseMalformed, p.Status, "raw %q", raw)
		assert.Empty(t, p.Ideas)
	}
}

func TestExtract(t *testing.T) {
	fp := &fakeProvider{reply: `{"ideas":[
		{"title":"Attention Is All You Need"},
		{"title":"attention is all you need."},
		{"title":"BERT"},
		{"title":"GPT-3"}
	]}`}
	e := &Extractor{Provider: fp, MaxIdeas: 2}

	p, err := e.Extract(context.Background(), paragraph)
	require.NoError(t, err)
	assert.Equal(t, ParseOK, p.Status)
	require.Len(t, p.Ideas, 2)
	assert.Equal(t, "Attention Is All You Need", p.Ideas[0].Title)
	assert.Equal(t, "BERT", p.Ideas[1].Title)

	assert.Equal(t, ideasSystemPrompt, fp.got.System)
	assert.Contains(t, fp.got.User, paragraph)
	assert.Contains(t, fp.got.User, "at most 2 papers")
}

func TestExtractMalformedIsNotError(t *testing.T) {
	e := &Extractor{Provider: &fakeProvider{reply: "no idea"}}
	p, err := e.Extract(context.Background(), paragraph)
	require.NoError(t, err)
	assert.Equal(t, ParseMalformed, p.Status)
	assert.Empty(t, p.Ideas)
}

func TestExtractProviderFailure(t *testing.T) {
	e := &Extractor{Provider: &fakeProvider{err: apierr.FromStatus("fake", "complete", 503, "")}}
	_, err := e.Extract(context.Background(), paragraph)
	require.Error(t, err)
	assert.True(t, apierr.IsExternal(err))
}

func TestExtractTimeout(t *testing.T) {
	e := &Extractor{Provider: &fakeProvider{delay: time.Second}, Timeout: 10 * time.Millisecond}
	_, err := e.Extract(context.Background(), paragraph)
	require.Error(t, err)
	assert.True(t, apierr.IsTimeout(err), "got %v", err)
}

func TestSelectAuthors(t *testing.T) {
	authors := []string{"Ashish Vaswani", "Noam Shazeer", "Jacob Devlin"}

	t.Run("subset in input order", func(t *testing.T) {
		fp := &fakeProvider{reply: "- jacob  devlin\n1. Ashish Vaswani\nGeoffrey Hinton\n"}
		k := &KeyAuthors{Provider: fp}
		got, err := k.SelectAuthors(context.Background(), paragraph, authors)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ashish Vaswani", "Jacob Devlin"}, got)
		for _, a := range authors {
			assert.True(t, strings.Contains(fp.got.User, a))
		}
	})

	t.Run("unusable answer falls back to all", func(t *testing.T) {
		k := &KeyAuthors{Provider: &fakeProvider{reply: "I don't know these people."}}
		got, err := k.SelectAuthors(context.Background(), paragraph, authors)
		require.NoError(t, err)
		assert.Equal(t, authors, got)
	})

	t.Run("provider failure", func(t *testing.T) {
		k := &KeyAuthors{Provider: &fakeProvider{err: apierr.FromStatus("fake", "complete", 401, "")}}
		_, err := k.SelectAuthors(context.Background(), paragraph, authors)
		assert.True(t, apierr.IsAuth(err))
	})

	t.Run("no authors", func(t *testing.T) {
		k := &KeyAuthors{Provider: &fakeProvider{}}
		got, err := k.SelectAuthors(context.Background(), paragraph, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestAuthorKey(t *testing.T) {
	assert.Equal(t, "ashish vaswani", AuthorKey("  Ashish   VASWANI "))
}
