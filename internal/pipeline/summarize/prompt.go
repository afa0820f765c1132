package summarize

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/talkless/talkless/models"
)

// buildPrompt assembles the generation prompt for one group: article
// metadata with bounded excerpts, the perspective breakdown, and the
// non-negotiable constraints the validator will enforce.
func (e *Engine) buildPrompt(group models.ArticleGroup, perspectives models.PerspectiveAnalysis) string {
	var b strings.Builder

	b.WriteString("You are a news summarization system. Create a transformative summary of the following articles, which all cover the same story.\n\n")

	b.WriteString("Requirements (non-negotiable):\n")
	b.WriteString("1. Write ORIGINAL text. Never copy sentences or phrases from the articles.\n")
	b.WriteString("2. Cite EVERY factual claim with a bracket tag naming the source, e.g. [Source: BBC News] or [Sources: BBC News, Reuters].\n")
	b.WriteString("3. Include every perspective present in the articles.\n")
	b.WriteString("4. Do NOT add speculation, opinion, or analysis.\n")
	b.WriteString("5. When sources conflict, state both versions and attribute each.\n")
	fmt.Fprintf(&b, "6. The summary must be between %d and %d characters.\n\n", e.cfg.MinSummaryLength, e.cfg.MaxSummaryLength)

	b.WriteString("Articles:\n")
	for i, a := range group.Articles {
		fmt.Fprintf(&b, "--- Article %d ---\n", i+1)
		fmt.Fprintf(&b, "Source: %s\nTitle: %s\n", a.Source, a.Title)
		if a.Author != "" {
			fmt.Fprintf(&b, "Author: %s\n", a.Author)
		}
		fmt.Fprintf(&b, "URL: %s\n", a.URL)
		if excerpt := e.excerpt(a.Content); excerpt != "" {
			fmt.Fprintf(&b, "Excerpt: %s\n", excerpt)
		}
		b.WriteString("\n")
	}

	b.WriteString("Coverage breakdown:\n")
	fmt.Fprintf(&b, "%d articles from %d sources (diversity %.2f)\n",
		perspectives.TotalArticles, len(perspectives.SourceCounts), perspectives.SourceDiversity)
	sources := make([]string, 0, len(perspectives.SourceCounts))
	for name := range perspectives.SourceCounts {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	for _, name := range sources {
		fmt.Fprintf(&b, "- %s: %d article(s)\n", name, perspectives.SourceCounts[name])
	}
	if len(perspectives.MissingSources) > 0 {
		fmt.Fprintf(&b, "Not covered by: %s\n", strings.Join(perspectives.MissingSources, ", "))
	}

	b.WriteString("\nRespond with the summary text only.")
	return b.String()
}

// excerpt bounds article content for the prompt.
func (e *Engine) excerpt(content string) string {
	content = strings.TrimSpace(content)
	if e.cfg.ExcerptChars > 0 && len(content) > e.cfg.ExcerptChars {
		n := e.cfg.ExcerptChars
		for n > 0 && !utf8.RuneStart(content[n]) {
			n--
		}
		return content[:n] + "…"
	}
	return content
}
