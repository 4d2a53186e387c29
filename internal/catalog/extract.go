package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Raw catalog element, as served by the storefront API. Only the fields the
// extractors look at are modeled; everything else is ignored on decode.
type element struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	ProductSlug   string        `json:"productSlug"`
	URLSlug       string        `json:"urlSlug"`
	KeyImages     []keyImage    `json:"keyImages"`
	Price         *price        `json:"price"`
	Promotions    *promotions   `json:"promotions"`
	CatalogNs     namespace     `json:"catalogNs"`
	OfferMappings []pageMapping `json:"offerMappings"`
}

type keyImage struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type namespace struct {
	Mappings []pageMapping `json:"mappings"`
}

type pageMapping struct {
	PageSlug string `json:"pageSlug"`
	PageType string `json:"pageType"`
}

type price struct {
	TotalPrice totalPrice  `json:"totalPrice"`
	LineOffers []lineOffer `json:"lineOffers"`
}

type totalPrice struct {
	OriginalPrice int    `json:"originalPrice"` // cents
	DiscountPrice int    `json:"discountPrice"` // cents
	CurrencyCode  string `json:"currencyCode"`
	FmtPrice      struct {
		OriginalPrice string `json:"originalPrice"`
	} `json:"fmtPrice"`
}

type lineOffer struct {
	AppliedRules []appliedRule `json:"appliedRules"`
}

type appliedRule struct {
	EndDate         string `json:"endDate"`
	DiscountSetting struct {
		DiscountType       string `json:"discountType"`
		DiscountPercentage int    `json:"discountPercentage"`
	} `json:"discountSetting"`
}

type promotions struct {
	Current  []offerGroup `json:"promotionalOffers"`
	Upcoming []offerGroup `json:"upcomingPromotionalOffers"`
}

type offerGroup struct {
	Offers []promoOffer `json:"promotionalOffers"`
}

type promoOffer struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Extraction skip reasons. These are recovered locally: the element is
// dropped with a log line and the rest of the fetch continues.
var (
	errNotFree      = errors.New("not currently free")
	errMysteryItem  = errors.New("mystery placeholder entry")
	errNoIdentifier = errors.New("no usable identifier")
)

// extractGame normalizes one raw catalog element.
func extractGame(el element, locale string) (Game, error) {
	if el.Price == nil || el.Price.TotalPrice.DiscountPrice != 0 {
		return Game{}, errNotFree
	}
	if strings.Contains(strings.ToLower(el.Title), "mystery game") {
		return Game{}, errMysteryItem
	}

	slug := resolveSlug(el)
	if slug == "" {
		return Game{}, errNoIdentifier
	}

	return Game{
		ID:            slug,
		Title:         el.Title,
		URL:           storeURL(locale, slug),
		ImageURL:      resolveImage(el),
		OriginalPrice: resolvePrice(el),
		PromoEnd:      resolvePromoEnd(el),
	}, nil
}

// ---- identifier chain ----

// Each extractor returns (value, ok); the chain short-circuits on the first
// hit. The order matters: product slug, namespace mapping, offer mapping,
// raw URL slug, and finally the opaque catalog id.
type slugExtractor func(el element) (string, bool)

var slugChain = []slugExtractor{
	slugFromProduct,
	slugFromNamespace,
	slugFromOfferMappings,
	slugFromURLSlug,
	slugFromID,
}

func resolveSlug(el element) string {
	for _, fn := range slugChain {
		if s, ok := fn(el); ok {
			return s
		}
	}
	return ""
}

func slugFromProduct(el element) (string, bool) {
	return cleanSlug(el.ProductSlug)
}

func slugFromNamespace(el element) (string, bool) {
	return slugFromMappings(el.CatalogNs.Mappings)
}

func slugFromOfferMappings(el element) (string, bool) {
	return slugFromMappings(el.OfferMappings)
}

func slugFromMappings(mappings []pageMapping) (string, bool) {
	// Prefer the product home page when the mapping carries page types.
	for _, m := range mappings {
		if m.PageType == "productHome" {
			if s, ok := cleanSlug(m.PageSlug); ok {
				return s, true
			}
		}
	}
	for _, m := range mappings {
		if s, ok := cleanSlug(m.PageSlug); ok {
			return s, true
		}
	}
	return "", false
}

func slugFromURLSlug(el element) (string, bool) {
	return cleanSlug(el.URLSlug)
}

func slugFromID(el element) (string, bool) {
	s := strings.TrimSpace(el.ID)
	return s, s != ""
}

func cleanSlug(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "/home")
	if s == "" || s == "[]" {
		return "", false
	}
	return s, true
}

func storeURL(locale, slug string) string {
	if locale == "" {
		locale = "en-US"
	}
	return fmt.Sprintf("https://store.epicgames.com/%s/p/%s", locale, url.PathEscape(slug))
}

// resolveImage prefers the wide storefront art, falling back to whatever
// image the element carries first.
func resolveImage(el element) string {
	for _, img := range el.KeyImages {
		if img.Type == "DieselStoreFrontWide" || img.Type == "OfferImageWide" {
			if img.URL != "" {
				return img.URL
			}
		}
	}
	if len(el.KeyImages) > 0 {
		return el.KeyImages[0].URL
	}
	return ""
}

// ---- price chain ----

type priceExtractor func(el element) (string, bool)

var priceChain = []priceExtractor{
	priceFromCents,
	priceFromFormatted,
	priceFromAppliedRules,
}

// resolvePrice renders the original (pre-discount) price of the element,
// falling back to "Free" when nothing usable is present.
func resolvePrice(el element) string {
	for _, fn := range priceChain {
		if s, ok := fn(el); ok {
			return s
		}
	}
	return "Free"
}

func priceFromCents(el element) (string, bool) {
	tp := el.Price.TotalPrice
	if tp.DiscountPrice == 0 && tp.OriginalPrice > 0 {
		return formatCents(tp.OriginalPrice, tp.CurrencyCode), true
	}
	return "", false
}

func priceFromFormatted(el element) (string, bool) {
	s := strings.TrimSpace(el.Price.TotalPrice.FmtPrice.OriginalPrice)
	if s == "" || s == "0" {
		return "", false
	}
	return s, true
}

// priceFromAppliedRules covers elements whose totalPrice has not been
// re-priced yet but whose line offer carries a 100%-off rule.
func priceFromAppliedRules(el element) (string, bool) {
	tp := el.Price.TotalPrice
	if tp.OriginalPrice <= 0 {
		return "", false
	}
	for _, lo := range el.Price.LineOffers {
		for _, r := range lo.AppliedRules {
			if r.DiscountSetting.DiscountPercentage == 0 {
				return formatCents(tp.OriginalPrice, tp.CurrencyCode), true
			}
		}
	}
	return "", false
}

func formatCents(cents int, currency string) string {
	v := float64(cents) / 100
	switch currency {
	case "USD", "CAD", "AUD", "":
		return fmt.Sprintf("$%.2f", v)
	case "EUR":
		return fmt.Sprintf("€%.2f", v)
	case "GBP":
		return fmt.Sprintf("£%.2f", v)
	default:
		return fmt.Sprintf("%.2f %s", v, currency)
	}
}

// ---- promotion end ----

// resolvePromoEnd picks the end of the currently-active promotional offer
// block, falling back to the upcoming block. A zero time means the
// promotion duration is unknown; that is NOT treated as "not free".
func resolvePromoEnd(el element) time.Time {
	if el.Promotions == nil {
		return time.Time{}
	}
	if t, ok := endFromGroups(el.Promotions.Current); ok {
		return t
	}
	if t, ok := endFromGroups(el.Promotions.Upcoming); ok {
		return t
	}
	return time.Time{}
}

func endFromGroups(groups []offerGroup) (time.Time, bool) {
	for _, g := range groups {
		for _, o := range g.Offers {
			if t, err := parsePromoTime(o.EndDate); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func parsePromoTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Some feeds omit the offset entirely; treat those as UTC.
		t, err = time.Parse("2006-01-02T15:04:05", s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}
