package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/entrhq/medisimple/pkg/browser"
	"github.com/entrhq/medisimple/pkg/browser/browsertest"
	"github.com/entrhq/medisimple/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcquirer struct {
	page *browsertest.Page
	err  error
	n    int
}

func (f *fakeAcquirer) AcquireFresh() (browser.Page, error) {
	f.n++
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

const articleHTML = `<html><body><div id="mw-content-text">
<p>Influenza, commonly known as the flu, is an infectious disease caused by influenza viruses.</p>
<p>Symptoms range from mild to severe and often include fever, runny nose and sore throat.</p>
</div></body></html>`

func TestFetch(t *testing.T) {
	page := browsertest.NewPage()
	page.HTML = articleHTML
	pages := &fakeAcquirer{page: page}
	r := New(pages, zerolog.Nop(), WithSearchURL("https://ref.example"))

	text, err := r.Fetch(context.Background(), "flu")
	require.NoError(t, err)

	assert.Equal(t, 1, pages.n, "every fetch uses a fresh page")
	assert.True(t, strings.HasPrefix(text, "Influenza, commonly known as the flu"))
	assert.Contains(t, text, "\n\nSymptoms range")
	assert.Equal(t, []string{
		"goto https://ref.example",
		`fill input[name="search"] flu`,
		"sleep 400ms",
		`press input[name="search"] Enter`,
		"loadstate domcontentloaded",
		"content",
	}, page.Calls())
}

func TestFetchTimeoutIsUnreachable(t *testing.T) {
	for _, op := range []string{"goto", "fill", "press", "loadstate"} {
		t.Run(op, func(t *testing.T) {
			page := browsertest.NewPage()
			page.Errors[op] = browser.NewTimeoutError(op, errors.New("deadline"))
			r := New(&fakeAcquirer{page: page}, zerolog.Nop())

			_, err := r.Fetch(context.Background(), "flu")
			assert.ErrorIs(t, err, ErrUnreachable)
		})
	}
}

func TestFetchOtherErrors(t *testing.T) {
	page := browsertest.NewPage()
	page.Errors["fill"] = errors.New("element not found")
	r := New(&fakeAcquirer{page: page}, zerolog.Nop())

	_, err := r.Fetch(context.Background(), "flu")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnreachable)

	r = New(&fakeAcquirer{err: errors.New("no browser")}, zerolog.Nop())
	_, err = r.Fetch(context.Background(), "flu")
	assert.ErrorContains(t, err, "no browser")
}

func TestFetchCancelled(t *testing.T) {
	pages := &fakeAcquirer{page: browsertest.NewPage()}
	r := New(pages, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Fetch(ctx, "flu")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, pages.n)
}

func TestArticleContext(t *testing.T) {
	assert.Equal(t, "Wikipedia article:\nabc\n\n", ArticleContext("abcdef", 3))
	assert.Equal(t, "Wikipedia article:\nabcdef\n\n", ArticleContext("abcdef", 2500))
	assert.Equal(t, "Wikipedia article:\nhé\n\n", ArticleContext("héllo", 2), "limit counts characters")
}

func TestConversationContext(t *testing.T) {
	turns := []types.Turn{
		{Role: types.RoleUser, Content: "what is flu"},
		{Role: types.RoleAssistant, Content: "A virus."},
	}
	assert.Equal(t, "Previous conversation:\nUser: what is flu\nAssistant: A virus.\n\n", ConversationContext(turns))
	assert.Equal(t, "Previous conversation:\n\n", ConversationContext(nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, 5, RuneLen("héllo"))
}
