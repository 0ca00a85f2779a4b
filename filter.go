package filterengine

// GlobalDomainKey is the sentinel host under which rules with no
// applicable domain are stored.
const GlobalDomainKey = "global"

// Filter is the common shape of a parsed ABP rule: either a *UrlFilter or
// an *HtmlFilter, exposed through a small closed interface instead of an
// inheritance hierarchy.
type Filter interface {
	// Base returns the fields shared by every filter variant.
	Base() *BaseFilter
	isFilter()
}

// BaseFilter holds the fields common to every Filter variant.
type BaseFilter struct {
	// OriginalRule is the source text of the rule. It may be cleared by
	// TrimExcessData once the owner no longer needs it for
	// serialisation.
	OriginalRule string
	// IsException marks a whitelist rule.
	IsException bool
	// CategoryID is a freeform 16-bit tag assigned by the ingester.
	CategoryID uint16
}

// UrlFilter is a compiled URL filter: a match program plus its option
// bitset and applicable/exception domain and referer sets.
type UrlFilter struct {
	BaseFilter

	// Parts is the ordered sequence of match fragments
	// compiled from the rule body. A rule with no body (only options)
	// compiles to an empty slice, which matches every URI.
	Parts []Fragment

	// Options is the bitset over the rule's recognised option tokens.
	Options OptionSet

	// ApplicableDomains and ExceptionDomains gate the rule by request
	// host. An empty ApplicableDomains means "all hosts".
	ApplicableDomains map[string]struct{}
	ExceptionDomains  map[string]struct{}

	// ApplicableReferers and ExceptionReferers gate the rule by the
	// Referer header's host, with the same membership semantics.
	ApplicableReferers map[string]struct{}
	ExceptionReferers  map[string]struct{}
}

var _ Filter = (*UrlFilter)(nil)

func (f *UrlFilter) Base() *BaseFilter { return &f.BaseFilter }
func (*UrlFilter) isFilter()           {}

// TrimExcessData drops OriginalRule and the applicable/exception host
// sets. Afterwards the option checks and the fragment program still
// apply, but IsMatch no longer gates by request host or Referer host, and
// the filter can no longer be serialised; callers
// that need the source text for re-parsing (the rule store's lookup
// path) must not call this until the owner is done with it.
func (f *UrlFilter) TrimExcessData() {
	f.OriginalRule = ""
	f.ApplicableDomains = nil
	f.ExceptionDomains = nil
	f.ApplicableReferers = nil
	f.ExceptionReferers = nil
}

// HtmlFilter is a parsed element-hide rule. The core parses and
// categorises these but does not execute them against a DOM.
type HtmlFilter struct {
	BaseFilter

	// CSSSelector is the selector payload after the ##/#@# sentinel,
	// stored verbatim.
	CSSSelector string

	ApplicableDomains map[string]struct{}
	ExceptionDomains  map[string]struct{}
}

var _ Filter = (*HtmlFilter)(nil)

func (f *HtmlFilter) Base() *BaseFilter { return &f.BaseFilter }
func (*HtmlFilter) isFilter()           {}

// domainSet builds a membership set from a pipe-separated domain=/referer=
// value, splitting ~-prefixed entries into the exclude set and the rest
// into the include set.
func domainSet(value string) (include, exclude map[string]struct{}) {
	parts := splitASCII(value, '|')
	include = make(map[string]struct{}, len(parts))
	exclude = make(map[string]struct{}, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if part[0] == '~' {
			exclude[part[1:]] = struct{}{}
		} else {
			include[part] = struct{}{}
		}
	}
	return include, exclude
}

// commaList splits a comma-separated domain list, as used by element-hide
// rules, ignoring empty entries.
func commaList(value string) []string {
	if value == "" {
		return nil
	}
	parts := splitASCII(value, ',')
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
