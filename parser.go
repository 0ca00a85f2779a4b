package filterengine

import "net/url"

// anchorEndChars terminates a captured host (after "||") or address
// (after a leading "|").
const anchorEndChars = "/:?=&*^"

// Element-hide sentinels, and the offset from each sentinel's start to
// the css-selector payload.
const (
	htmlHideSentinel      = "##"
	htmlExceptionSentinel = "#@"
	htmlHideSentinelLen   = 2
	htmlExceptionSentLen  = 3
)

// StrictSelectors, when true, makes Parse return ErrEmptySelector for an
// element-hide rule whose CSS selector payload is empty. Off by
// default, matching a permissive parsing posture: an empty selector is
// unusual but not by itself a reason to drop the rule.
var StrictSelectors = false

// Parse turns a single raw ABP rule line into a *UrlFilter or an
// *HtmlFilter. It is single-pass and never allocates a regexp engine.
// Malformed or bounds-violating input yields (nil, err) rather than a
// panic; callers are expected to count failures and continue.
func Parse(line string, categoryID uint16) (f Filter, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, ErrMalformedRule
		}
	}()

	if isBlankASCII(line) {
		return nil, ErrEmptyLine
	}
	if isCommentASCII(line) {
		return nil, ErrMalformedRule
	}

	if hhIdx := lastIndexASCII(line, htmlHideSentinel); hhIdx >= 0 {
		return parseHTMLFilter(line, hhIdx, htmlHideSentinelLen, false, categoryID)
	}
	if haIdx := lastIndexASCII(line, htmlExceptionSentinel); haIdx >= 0 {
		return parseHTMLFilter(line, haIdx, htmlExceptionSentLen, true, categoryID)
	}
	return parseURLFilter(line, categoryID)
}

func isBlankASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return false
		}
	}
	return true
}

// isCommentASCII reports whether line is a comment: a bang anywhere on
// the line, or an "[Adblock" list header.
func isCommentASCII(line string) bool {
	return indexASCII(line, "!", 0, true) >= 0 || hasPrefixASCII(line, "[Adblock", false)
}

func parseHTMLFilter(line string, sentinelIdx, sentinelLen int, isException bool, categoryID uint16) (Filter, error) {
	tailStart := sentinelIdx + sentinelLen
	if tailStart > len(line) {
		return nil, ErrMalformedRule
	}

	selector := line[tailStart:]
	if StrictSelectors && selector == "" {
		return nil, ErrEmptySelector
	}

	applicable := map[string]struct{}{}
	exception := map[string]struct{}{}
	for _, d := range commaList(line[:sentinelIdx]) {
		if d[0] == '~' {
			exception[d[1:]] = struct{}{}
		} else {
			applicable[d] = struct{}{}
		}
	}

	return &HtmlFilter{
		BaseFilter: BaseFilter{
			OriginalRule: line,
			IsException:  isException,
			CategoryID:   categoryID,
		},
		CSSSelector:       selector,
		ApplicableDomains: applicable,
		ExceptionDomains:  exception,
	}, nil
}

func parseURLFilter(line string, categoryID uint16) (Filter, error) {
	isException := hasPrefixASCII(line, "@@", true)
	body := line
	if isException {
		body = line[2:]
	}

	var optionsSegment string
	if dollarIdx := lastIndexASCII(body, "$"); dollarIdx >= 0 {
		optionsSegment = body[dollarIdx+1:]
		body = body[:dollarIdx]
	}

	applicableDomains := map[string]struct{}{}
	exceptionDomains := map[string]struct{}{}
	applicableReferers := map[string]struct{}{}
	exceptionReferers := map[string]struct{}{}
	var options OptionSet

	for _, tok := range splitASCII(optionsSegment, ',') {
		if tok == "" {
			continue
		}
		switch {
		case looksLikeDomainOption(tok):
			inc, exc := domainSet(tok[len("domain="):])
			mergeSet(applicableDomains, inc)
			mergeSet(exceptionDomains, exc)
		case looksLikeRefererOption(tok):
			inc, exc := domainSet(tok[len("referer="):])
			mergeSet(applicableReferers, inc)
			mergeSet(exceptionReferers, exc)
		default:
			if bit, ok := lookupOption(tok); ok {
				options |= bit
			}
		}
	}

	caseSensitive := options.Has(OptMatchCase)
	fragments, inferredHosts, err := compileBody(body, caseSensitive)
	if err != nil {
		return nil, err
	}
	for _, h := range inferredHosts {
		applicableDomains[h] = struct{}{}
	}

	return &UrlFilter{
		BaseFilter: BaseFilter{
			OriginalRule: line,
			IsException:  isException,
			CategoryID:   categoryID,
		},
		Parts:              fragments,
		Options:            options,
		ApplicableDomains:  applicableDomains,
		ExceptionDomains:   exceptionDomains,
		ApplicableReferers: applicableReferers,
		ExceptionReferers:  exceptionReferers,
	}, nil
}

// looksLikeDomainOption and looksLikeRefererOption are cheap positional
// checks: length over 7, first char 'd'/'r', and an '=' at the byte
// offset "domain="/"referer=" would put it. They match any token with
// the same shape rather than comparing the literal prefix, so a token
// that merely looks like one of these (without actually being one) is
// still routed here instead of through the option table; the result is
// a well-formed, if semantically odd, filter rather than a parse error.
func looksLikeDomainOption(tok string) bool {
	return len(tok) > 7 && tok[0] == 'd' && tok[6] == '='
}

func looksLikeRefererOption(tok string) bool {
	return len(tok) > 7 && tok[0] == 'r' && tok[7] == '='
}

func mergeSet(dst, src map[string]struct{}) {
	for k := range src {
		dst[k] = struct{}{}
	}
}

// compileBody compiles a URL filter's main body (after options/@@/domain
// stripping) into an ordered fragment program. It also returns any host
// implied by an anchored-domain or anchored-address prefix, which the
// caller adds to ApplicableDomains.
func compileBody(body string, caseSensitive bool) (fragments []Fragment, inferredHosts []string, err error) {
	pos := 0

	switch {
	case hasPrefixASCII(body, "||", true):
		pos = 2
		end := indexByteAnyASCII(body, anchorEndChars, pos)
		if end < 0 {
			end = len(body)
		}
		host := body[pos:end]
		if host == "" {
			return nil, nil, ErrMalformedRule
		}
		fragments = append(fragments, Fragment{Kind: FragAnchoredDomain, Value: host})
		inferredHosts = append(inferredHosts, host)
		pos = end

	case len(body) > 0 && body[0] == '|':
		pos = 1
		end := -1
		for i := pos; i < len(body); i++ {
			if body[i] == '|' || containsByte(anchorEndChars, body[i]) {
				end = i
				break
			}
		}
		if end < 0 {
			end = len(body)
		}
		addr := body[pos:end]
		fragments = append(fragments, Fragment{Kind: FragAnchoredAddress, Value: addr, CaseSensitive: caseSensitive})
		if u, perr := url.Parse(addr); perr == nil && u.Host != "" {
			inferredHosts = append(inferredHosts, u.Hostname())
		}
		if end < len(body) && body[end] == '|' {
			pos = end + 1
		} else {
			pos = end
		}
	}

	literalStart := pos
	i := pos
	for i < len(body) {
		switch body[i] {
		case '*':
			if i > literalStart {
				fragments = append(fragments, Fragment{Kind: FragStringLiteral, Value: body[literalStart:i], CaseSensitive: caseSensitive})
			}
			fragments = append(fragments, Fragment{Kind: FragWildcard})
			i++
			literalStart = i
		case '^':
			if i > literalStart {
				fragments = append(fragments, Fragment{Kind: FragStringLiteral, Value: body[literalStart:i], CaseSensitive: caseSensitive})
			}
			fragments = append(fragments, Fragment{Kind: FragSeparator})
			i++
			literalStart = i
		default:
			i++
		}
	}
	if literalStart < len(body) {
		fragments = append(fragments, Fragment{Kind: FragStringLiteral, Value: body[literalStart:], CaseSensitive: caseSensitive})
	}

	return fragments, inferredHosts, nil
}
