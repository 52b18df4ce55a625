// Package issuer guesses which bank produced a statement from markers on
// its first page and in the PDF metadata.
package issuer

import (
	"sort"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// DefaultFloor is the confidence below which a statement is treated as GENERIC.
const DefaultFloor = 0.5

const (
	weakWeight   = 0.4
	strongWeight = 0.6
	headerWeight = 0.3
)

// Profile describes how one issuer announces itself.
type Profile struct {
	Tag models.IssuerTag
	// Strong markers are legal names, domains and routing/BIC codes.
	Strong []string
	// Weak markers are brand words that also show up in other banks' rows.
	Weak []string
	// Header is a column header signature; every word must appear.
	Header []string
}

// Profiles is the built-in marker table.
var Profiles = []Profile{
	{
		Tag:    models.IssuerWestpac,
		Strong: []string{"WESTPAC BANKING CORPORATION", "WPACAU2S", "WESTPAC.COM.AU"},
		Weak:   []string{"WESTPAC"},
		Header: []string{"DATE", "DESCRIPTION", "AMOUNT", "CURRENCY"},
	},
	{
		Tag:    models.IssuerCommonwealth,
		Strong: []string{"COMMONWEALTH BANK OF AUSTRALIA", "CTBAAU2S", "COMMBANK.COM.AU"},
		Weak:   []string{"COMMBANK", "NETBANK", "COMMONWEALTH BANK"},
		Header: []string{"DATE", "TRANSACTION", "DEBIT", "CREDIT", "BALANCE"},
	},
	{
		Tag:    models.IssuerBendigo,
		Strong: []string{"BENDIGO AND ADELAIDE BANK", "BENDAU3B", "BENDIGOBANK.COM.AU"},
		Weak:   []string{"BENDIGO BANK", "BENDIGO"},
		Header: []string{"DATE", "TRANSACTION", "WITHDRAWALS", "DEPOSITS", "BALANCE"},
	},
	{
		Tag:    models.IssuerLloyds,
		Strong: []string{"LLOYDS BANK PLC", "LOYDGB2L", "LLOYDSBANK.COM"},
		Weak:   []string{"LLOYDS BANK", "LLOYDS"},
		Header: []string{"DATE", "DESCRIPTION", "TYPE", "MONEY IN", "MONEY OUT", "BALANCE"},
	},
	{
		Tag:    models.IssuerMetro,
		Strong: []string{"METRO BANK PLC", "MYMBGB2L", "METROBANKONLINE.CO.UK"},
		Weak:   []string{"METRO BANK"},
		Header: []string{"DATE", "TRANSACTION", "MONEY OUT", "MONEY IN", "BALANCE"},
	},
	{
		Tag:    models.IssuerHSBC,
		Strong: []string{"HSBC UK BANK PLC", "HBUKGB4B", "HSBC.CO.UK"},
		Weak:   []string{"HSBC"},
		Header: []string{"DATE", "PAYMENT TYPE AND DETAILS", "PAID OUT", "PAID IN", "BALANCE"},
	},
	{
		Tag:    models.IssuerBarclays,
		Strong: []string{"BARCLAYS BANK UK PLC", "BUKBGB22", "BARCLAYS.CO.UK"},
		Weak:   []string{"BARCLAYS"},
		Header: []string{"DATE", "DESCRIPTION", "MONEY OUT", "MONEY IN", "BALANCE"},
	},
	{
		Tag:    models.IssuerDiscover,
		Strong: []string{"DISCOVER BANK", "DISCOVER.COM", "031100649", "DISCOVER IT"},
		Weak:   []string{"DISCOVER"},
		Header: []string{"TRANS. DATE", "POST DATE", "DESCRIPTION", "AMOUNT"},
	},
	{
		Tag:    models.IssuerSunTrust,
		Strong: []string{"SUNTRUST BANK", "SUNTRUST.COM", "061000104"},
		Weak:   []string{"SUNTRUST"},
		Header: []string{"DEPOSITS/CREDITS", "WITHDRAWALS/DEBITS", "BALANCE ACTIVITY"},
	},
	{
		Tag:    models.IssuerHuntington,
		Strong: []string{"THE HUNTINGTON NATIONAL BANK", "HUNTINGTON.COM", "044000024"},
		Weak:   []string{"HUNTINGTON"},
		Header: []string{"DEPOSITS (PLUS)", "WITHDRAWALS (MINUS)"},
	},
	{
		Tag:    models.IssuerPayPal,
		Strong: []string{"PAYPAL, INC.", "PAYPAL.COM", "PAYPAL (EUROPE)"},
		Weak:   []string{"PAYPAL"},
		Header: []string{"DATE", "DESCRIPTION", "GROSS", "FEE", "NET"},
	},
	{
		Tag:    models.IssuerBECU,
		Strong: []string{"BOEING EMPLOYEES CREDIT UNION", "BECU.ORG", "325081403"},
		Weak:   []string{"BECU"},
		Header: []string{"DEPOSITS AND OTHER CREDITS", "WITHDRAWALS AND OTHER DEBITS"},
	},
	{
		Tag:    models.IssuerRabobank,
		Strong: []string{"RABOBANK NEDERLAND", "RABONL2U", "RABOBANK.NL", "COÖPERATIEVE RABOBANK"},
		Weak:   []string{"RABOBANK"},
		Header: []string{"DATUM", "OMSCHRIJVING", "BEDRAG"},
	},
	{
		Tag:    models.IssuerGreenDot,
		Strong: []string{"GREEN DOT BANK", "GREENDOT.COM", "124303120"},
		Weak:   []string{"GREEN DOT"},
	},
	{
		Tag:    models.IssuerWoodforest,
		Strong: []string{"WOODFOREST NATIONAL BANK", "WOODFOREST.COM", "114994196"},
		Weak:   []string{"WOODFOREST"},
	},
	{
		Tag:    models.IssuerWalmart,
		Strong: []string{"WALMART MONEYCARD", "WALMARTMONEYCARD.COM"},
		Weak:   []string{"MONEYCARD"},
	},
}

// Classification is the classifier's verdict.
type Classification struct {
	Issuer     models.IssuerTag
	Confidence float64
	Markers    []string
	Header     bool
}

type marker struct {
	text   string
	tag    models.IssuerTag
	weight float64
}

// Classifier votes across issuer markers in a single pass over the text.
type Classifier struct {
	floor   float64
	markers []marker
	matcher *ahocorasick.Matcher
	headers map[models.IssuerTag][]string
}

// New builds a classifier over profiles. A non-positive floor means DefaultFloor.
func New(profiles []Profile, floor float64) *Classifier {
	if floor <= 0 {
		floor = DefaultFloor
	}
	c := &Classifier{floor: floor, headers: map[models.IssuerTag][]string{}}
	for _, p := range profiles {
		for _, s := range p.Strong {
			c.markers = append(c.markers, marker{text: strings.ToUpper(s), tag: p.Tag, weight: strongWeight})
		}
		for _, s := range p.Weak {
			c.markers = append(c.markers, marker{text: strings.ToUpper(s), tag: p.Tag, weight: weakWeight})
		}
		if len(p.Header) > 0 {
			c.headers[p.Tag] = p.Header
		}
	}
	patterns := make([][]byte, len(c.markers))
	for i, m := range c.markers {
		patterns[i] = []byte(m.text)
	}
	c.matcher = ahocorasick.NewMatcher(patterns)
	return c
}

// Default returns a classifier over the built-in profiles.
func Default() *Classifier {
	return New(Profiles, DefaultFloor)
}

type tally struct {
	tag     models.IssuerTag
	score   float64
	longest int
	header  bool
	markers []string
}

// Classify inspects firstPage and the document metadata values. Below the
// confidence floor the issuer is GENERIC; the best confidence is still reported.
func (c *Classifier) Classify(firstPage string, metadata map[string]string) Classification {
	var sb strings.Builder
	sb.WriteString(firstPage)
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteByte('\n')
		sb.WriteString(metadata[k])
	}
	text := strings.ToUpper(sb.String())

	tallies := map[models.IssuerTag]*tally{}
	seen := map[int]bool{}
	for _, idx := range c.matcher.Match([]byte(text)) {
		if idx < 0 || idx >= len(c.markers) || seen[idx] {
			continue
		}
		seen[idx] = true
		m := c.markers[idx]
		t := tallies[m.tag]
		if t == nil {
			t = &tally{tag: m.tag}
			tallies[m.tag] = t
		}
		t.score += m.weight
		t.markers = append(t.markers, m.text)
		if len(m.text) > t.longest {
			t.longest = len(m.text)
		}
	}
	var best *tally
	for _, t := range tallies {
		if words, ok := c.headers[t.tag]; ok && containsAll(text, words) {
			t.header = true
			t.score += headerWeight
		}
		if best == nil || better(t, best) {
			best = t
		}
	}
	if best == nil {
		return Classification{Issuer: models.IssuerGeneric}
	}
	sort.Strings(best.markers)
	out := Classification{
		Issuer:     best.tag,
		Confidence: min(best.score, 1),
		Markers:    best.markers,
		Header:     best.header,
	}
	if out.Confidence < c.floor {
		out.Issuer = models.IssuerGeneric
	}
	return out
}

// better orders tallies by score, then longest marker, then header
// signature, then tag so the result does not depend on map order.
func better(a, b *tally) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.longest != b.longest {
		return a.longest > b.longest
	}
	if a.header != b.header {
		return a.header
	}
	return a.tag < b.tag
}

func containsAll(text string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}
