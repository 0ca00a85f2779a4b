package filterengine

import (
	"net/http"
	"net/url"
)

// content-type ladder buckets: the ladder checks script, then image,
// then stylesheet, on a single Content-Type header, and never considers
// two of them satisfied at once.
const (
	ctBucketNone = iota
	ctBucketScript
	ctBucketImage
	ctBucketStylesheet
)

// IsMatch evaluates the compiled filter against a live request. It
// performs no I/O and returns false, never an error, for any header it
// cannot make sense of (e.g. an unparseable Referer).
func (f *UrlFilter) IsMatch(uri *url.URL, headers http.Header) bool {
	if !checkXHR(f.Options, headers.Get("X-Requested-With")) {
		return false
	}

	reqHost := stripWWW(uri.Hostname())

	if referer := headers.Get("Referer"); referer != "" {
		refURL, err := url.Parse(referer)
		if err != nil {
			return false
		}
		r := stripWWW(refURL.Hostname())

		isThirdParty := r != reqHost
		if f.Options.Has(OptNotThirdParty) && isThirdParty {
			return false
		}
		if f.Options.Has(OptThirdParty) && !isThirdParty {
			return false
		}

		if len(f.ApplicableDomains) > 0 && !domainSetContains(f.ApplicableDomains, r) {
			return false
		}
		if len(f.ExceptionDomains) > 0 && domainSetContains(f.ExceptionDomains, r) {
			return false
		}
		if len(f.ApplicableReferers) > 0 && !domainSetContains(f.ApplicableReferers, r) {
			return false
		}
		if len(f.ExceptionReferers) > 0 && domainSetContains(f.ExceptionReferers, r) {
			return false
		}
	} else if f.Options.Has(OptThirdParty) {
		// No Referer: a fresh navigation is never third-party, so the
		// positive bit goes unsatisfied.
		return false
	}

	if !checkContentType(f.Options, headers.Get("Content-Type")) {
		return false
	}

	if len(f.ApplicableDomains) > 0 && !domainSetContains(f.ApplicableDomains, reqHost) {
		return false
	}
	if len(f.ExceptionDomains) > 0 && domainSetContains(f.ExceptionDomains, reqHost) {
		return false
	}

	absolute := uri.String()
	schemeHostLen := len(uri.Scheme) + len("://") + len(uri.Host)
	return evalProgram(f.Parts, absolute, uri.Hostname(), schemeHostLen)
}

func checkXHR(opts OptionSet, xhrHeader string) bool {
	isXHR := equalASCII(xhrHeader, "XMLHttpRequest", false)
	if opts.Has(OptXMLHTTPRequest) && !isXHR {
		return false
	}
	if opts.Has(OptNotXMLHTTPRequest) && isXHR {
		return false
	}
	return true
}

func checkContentType(opts OptionSet, contentType string) bool {
	bucket := ctBucketNone
	switch {
	case indexASCII(contentType, "script", 0, false) >= 0:
		bucket = ctBucketScript
	case indexASCII(contentType, "image", 0, false) >= 0:
		bucket = ctBucketImage
	case indexASCII(contentType, "stylesheet", 0, false) >= 0:
		bucket = ctBucketStylesheet
	}

	if opts.Has(OptScript) && bucket != ctBucketScript {
		return false
	}
	if opts.Has(OptNotScript) && bucket == ctBucketScript {
		return false
	}
	if opts.Has(OptImage) && bucket != ctBucketImage {
		return false
	}
	if opts.Has(OptNotImage) && bucket == ctBucketImage {
		return false
	}
	if opts.Has(OptStylesheet) && bucket != ctBucketStylesheet {
		return false
	}
	if opts.Has(OptNotStylesheet) && bucket == ctBucketStylesheet {
		return false
	}
	return true
}

// stripWWW drops a leading "www." from host, case-insensitively.
func stripWWW(host string) string {
	if hasPrefixASCII(host, "www.", false) {
		return host[len("www."):]
	}
	return host
}

// domainSetContains reports whether host equals or is a subdomain of any
// entry in set, using the same domain-boundary rule as an AnchoredDomain
// fragment.
func domainSetContains(set map[string]struct{}, host string) bool {
	for d := range set {
		if domainSuffixMatch(host, d) {
			return true
		}
	}
	return false
}
