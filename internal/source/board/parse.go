package board

import (
	"fmt"
	"strings"

	"github.com/FranksOps/internsift/internal/listing"
	"github.com/PuerkitoBio/goquery"
)

// Parse maps up to limit result cards of a rendered search page to
// listings, in page order. Fields that a card lacks are left nil.
func Parse(html string, b Board, limit int) ([]listing.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("board: parse %s page: %w", b.Source, err)
	}
	return ParseDocument(doc, b, limit), nil
}

// ParseDocument is Parse over an already parsed document.
func ParseDocument(doc *goquery.Document, b Board, limit int) []listing.Listing {
	cards := doc.Find(b.Card)
	out := make([]listing.Listing, 0, min(cards.Length(), max(limit, 0)))

	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		out = append(out, parseCard(card, b))
		return true
	})
	return out
}

func parseCard(card *goquery.Selection, b Board) listing.Listing {
	return listing.Listing{
		Title:       text(card, b.Title),
		Company:     text(card, b.Company),
		Description: text(card, b.Description),
		URL:         link(card, b),
	}
}

func text(card *goquery.Selection, sel string) *string {
	if sel == "" {
		return nil
	}
	found := card.Find(sel).First()
	if found.Length() == 0 {
		return nil
	}
	return listing.Text(found.Text())
}

func link(card *goquery.Selection, b Board) *string {
	anchor := card
	if b.Link != "" {
		anchor = card.Find(b.Link).First()
	}
	href, ok := anchor.Attr("href")
	if !ok {
		return nil
	}
	return listing.ResolveURL(b.Base, href)
}
