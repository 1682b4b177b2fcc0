package browser

import (
	"fmt"
	"regexp"
)

// StrategyKind selects how a Strategy matches candidate elements.
type StrategyKind int

const (
	// ByAttribute matches a regex against name, id, aria-label, and
	// (for buttons and links) the rendered text.
	ByAttribute StrategyKind = iota
	// ByPlaceholder matches a regex against the placeholder attribute.
	ByPlaceholder
	// ByType is the last-resort fallback: the first visible input of
	// the given type.
	ByType
)

// Strategy is one candidate way of finding an interactive element. Target
// sites have no stable markup contract; callers pass an ordered chain of
// strategies and the first one that matches a visible element wins.
type Strategy struct {
	Kind      StrategyKind
	Pattern   string // regex, for ByAttribute and ByPlaceholder
	InputType string // for ByType, e.g. "text" or "submit"
}

// Attr builds an attribute-pattern strategy.
func Attr(pattern string) Strategy { return Strategy{Kind: ByAttribute, Pattern: pattern} }

// Placeholder builds a placeholder-pattern strategy.
func Placeholder(pattern string) Strategy { return Strategy{Kind: ByPlaceholder, Pattern: pattern} }

// TypeFallback builds a "first visible input of this type" strategy.
func TypeFallback(inputType string) Strategy { return Strategy{Kind: ByType, InputType: inputType} }

// Element is the metadata snapshot of one interactive element on the
// page. The snapshot script tags each element with data-lw-el=index so a
// matched element can be addressed afterwards.
type Element struct {
	Index       int    `json:"index"`
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	ID          string `json:"id"`
	Placeholder string `json:"placeholder"`
	Label       string `json:"label"`
	Text        string `json:"text"`
	Visible     bool   `json:"visible"`
}

// Handle addresses a located element for subsequent interaction.
type Handle struct {
	Selector string
	Element  Element
}

// snapshotJS collects candidate elements with visibility computed in-page
// (non-zero box, not hidden via style) and tags them for addressing.
const snapshotJS = `(() => {
	const els = Array.from(document.querySelectorAll('input, select, textarea, button, a[role="button"]'));
	return els.map((el, i) => {
		el.setAttribute('data-lw-el', String(i));
		const st = window.getComputedStyle(el);
		const r = el.getBoundingClientRect();
		return {
			index: i,
			tag: el.tagName.toLowerCase(),
			type: (el.getAttribute('type') || '').toLowerCase(),
			name: el.getAttribute('name') || '',
			id: el.id || '',
			placeholder: el.getAttribute('placeholder') || '',
			label: el.getAttribute('aria-label') || '',
			text: (el.innerText || '').trim(),
			visible: r.width > 0 && r.height > 0 && st.display !== 'none' && st.visibility !== 'hidden',
		};
	});
})()`

// Snapshot returns the interactive elements currently on the page.
func Snapshot(s *Session) ([]Element, error) {
	var els []Element
	if err := s.eval(snapshotJS, &els); err != nil {
		return nil, fmt.Errorf("browser: element snapshot: %w", err)
	}
	return els, nil
}

// Locate tries each strategy in order against the current page and
// returns a handle on the first visible match. Not finding anything is a
// normal (false) return, not an error; callers treat it as a recoverable
// condition.
func Locate(s *Session, strategies []Strategy) (Handle, bool, error) {
	els, err := Snapshot(s)
	if err != nil {
		return Handle{}, false, err
	}
	el, ok := Match(els, strategies)
	if !ok {
		return Handle{}, false, nil
	}
	return Handle{Selector: fmt.Sprintf(`[data-lw-el="%d"]`, el.Index), Element: el}, true, nil
}

// Match applies the strategy chain to an element snapshot. Within a
// strategy, document order decides among multiple visible matches.
func Match(els []Element, strategies []Strategy) (Element, bool) {
	for _, strat := range strategies {
		var re *regexp.Regexp
		if strat.Pattern != "" {
			compiled, err := regexp.Compile("(?i)" + strat.Pattern)
			if err != nil {
				continue
			}
			re = compiled
		}
		for _, el := range els {
			if !el.Visible {
				continue
			}
			if strat.matches(el, re) {
				return el, true
			}
		}
	}
	return Element{}, false
}

func (s Strategy) matches(el Element, re *regexp.Regexp) bool {
	switch s.Kind {
	case ByAttribute:
		if re == nil {
			return false
		}
		if re.MatchString(el.Name) || re.MatchString(el.ID) || re.MatchString(el.Label) {
			return true
		}
		// Submit buttons and link-buttons often carry the label only
		// in their rendered text.
		return (el.Tag == "button" || el.Tag == "a") && re.MatchString(el.Text)
	case ByPlaceholder:
		return re != nil && el.Placeholder != "" && re.MatchString(el.Placeholder)
	case ByType:
		if s.InputType == "submit" {
			if el.Tag == "button" {
				return el.Type == "" || el.Type == "submit"
			}
			return el.Tag == "input" && el.Type == "submit"
		}
		if el.Tag != "input" {
			return false
		}
		return el.Type == s.InputType || (s.InputType == "text" && el.Type == "")
	default:
		return false
	}
}
