// Package bilibili supplies duplicate-lookup candidates by scraping the
// Bilibili search results page. Markup drift is expected: malformed result
// cards are skipped, and a title without a resolvable link is still returned
// as evidence. The Jaccard similarity helper is an auxiliary signal; the
// authoritative duplicate decision belongs to the language-model judge.
package bilibili
