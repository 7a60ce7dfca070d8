package browser

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MaxSearchResults caps the links reported by AnalyzeSearch.
const MaxSearchResults = 10

var (
	ErrNotSearchPage    = errors.New("not a search results page")
	ErrNoResults        = errors.New("no results found")
	ErrNoRelevantResult = errors.New("no relevant result found")
)

// SearchScript detects a search results page and lists its result links.
// A link counts as a result when its text is longer than 20 characters, it
// points to http(s) and it sits inside a list item or result container.
const SearchScript = `() => {
    const hasResults = document.querySelectorAll('ol li, ul li, .result, .search-result').length > 3;
    const hasSearchBox = document.querySelector('input[type="search"], input[name*="search"], input[name*="query"]') !== null;

    const results = [];
    document.querySelectorAll('a').forEach((link, idx) => {
        const text = link.innerText?.trim() || '';
        const href = link.href || '';
        const parent = link.closest('li, .result, .search-result');
        if (text.length > 20 && href.startsWith('http') && parent) {
            results.push({
                index: idx,
                title: text.slice(0, 100),
                url: href,
                snippet: parent.innerText?.slice(0, 200) || '',
            });
        }
    });

    return {
        isSearchPage: hasResults && hasSearchBox,
        resultCount: results.length,
        results: results.slice(0, 10),
    };
}`

// SearchResult is one result link of a search page.
type SearchResult struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchAnalysis describes the current page as a search results page.
// ResultCount counts every result link; Results holds at most
// MaxSearchResults of them.
type SearchAnalysis struct {
	IsSearchPage bool           `json:"isSearchPage"`
	ResultCount  int            `json:"resultCount"`
	Results      []SearchResult `json:"results"`
}

// AnalyzeSearch runs SearchScript on page.
func AnalyzeSearch(page Page) (SearchAnalysis, error) {
	raw, err := page.Evaluate(SearchScript)
	if err != nil {
		return SearchAnalysis{}, err
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return SearchAnalysis{}, errors.Wrap(err, "encode search analysis")
	}
	var a SearchAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		return SearchAnalysis{}, errors.Wrap(err, "decode search analysis")
	}
	if len(a.Results) > MaxSearchResults {
		a.Results = a.Results[:MaxSearchResults]
	}
	if a.Results == nil {
		a.Results = []SearchResult{}
	}
	return a, nil
}

// BestResult picks the result whose title and snippet contain the most words
// of term. Ties go to the earlier result; a result matching no word is never
// picked.
func BestResult(a SearchAnalysis, term string) (SearchResult, error) {
	if !a.IsSearchPage {
		return SearchResult{}, ErrNotSearchPage
	}
	if len(a.Results) == 0 {
		return SearchResult{}, ErrNoResults
	}

	words := strings.Fields(strings.ToLower(term))
	var (
		best      SearchResult
		bestScore int
	)
	for _, r := range a.Results {
		text := strings.ToLower(r.Title + " " + r.Snippet)
		score := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	if bestScore == 0 {
		return SearchResult{}, ErrNoRelevantResult
	}
	return best, nil
}

// OpenBestResult analyzes page and navigates it to the best match for term.
func OpenBestResult(page Page, term string, timeout time.Duration) (SearchResult, error) {
	a, err := AnalyzeSearch(page)
	if err != nil {
		return SearchResult{}, err
	}
	best, err := BestResult(a, term)
	if err != nil {
		return SearchResult{}, err
	}
	if err := page.Goto(best.URL, LoadStateLoad, timeout); err != nil {
		return SearchResult{}, errors.Wrapf(err, "open %s", best.URL)
	}
	return best, nil
}
