package filterengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmptyLine(t *testing.T) {
	f, err := Parse("   ", 1)
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrEmptyLine)
}

func TestParseCommentLine(t *testing.T) {
	f, err := Parse("! this is a comment", 1)
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrMalformedRule)
}

func TestParseAnchoredDomainRule(t *testing.T) {
	f, err := Parse("||silly.com^stoopid^url^*1$xmlhttprequest,script,~third-party", 7)
	require.NoError(t, err)

	uf, ok := f.(*UrlFilter)
	require.True(t, ok)

	_, applicable := uf.ApplicableDomains["silly.com"]
	assert.True(t, applicable)
	assert.True(t, uf.Options.Has(OptXMLHTTPRequest))
	assert.True(t, uf.Options.Has(OptScript))
	assert.True(t, uf.Options.Has(OptNotThirdParty))
	assert.EqualValues(t, 7, uf.CategoryID)

	require.Len(t, uf.Parts, 8)
	assert.Equal(t, FragAnchoredDomain, uf.Parts[0].Kind)
	assert.Equal(t, "silly.com", uf.Parts[0].Value)
}

func TestParseDomainOptionFastPath(t *testing.T) {
	f, err := Parse("r$domain=a.com|b.com|~c.com", 1)
	require.NoError(t, err)

	uf, ok := f.(*UrlFilter)
	require.True(t, ok)

	assert.Contains(t, uf.ApplicableDomains, "a.com")
	assert.Contains(t, uf.ApplicableDomains, "b.com")
	assert.Contains(t, uf.ExceptionDomains, "c.com")
}

func TestParseRefererOptionFastPath(t *testing.T) {
	f, err := Parse("@@$referer=pinterest.com", 1)
	require.NoError(t, err)

	uf, ok := f.(*UrlFilter)
	require.True(t, ok)

	assert.True(t, uf.IsException)
	assert.Contains(t, uf.ApplicableReferers, "pinterest.com")
	assert.Empty(t, uf.Parts)
}

func TestParseExceptionPrefix(t *testing.T) {
	f, err := Parse("@@||example.com^", 1)
	require.NoError(t, err)

	uf, ok := f.(*UrlFilter)
	require.True(t, ok)
	assert.True(t, uf.IsException)
}

func TestParseElementHideRule(t *testing.T) {
	f, err := Parse("example.com##.banner", 1)
	require.NoError(t, err)

	hf, ok := f.(*HtmlFilter)
	require.True(t, ok)

	assert.False(t, hf.IsException)
	assert.Equal(t, ".banner", hf.CSSSelector)
	assert.Contains(t, hf.ApplicableDomains, "example.com")
}

func TestParseElementHideException(t *testing.T) {
	f, err := Parse("example.com#@#.banner", 1)
	require.NoError(t, err)

	hf, ok := f.(*HtmlFilter)
	require.True(t, ok)
	assert.True(t, hf.IsException)
	assert.Equal(t, ".banner", hf.CSSSelector)
}

func TestParseOptionSetsExactlyOneBit(t *testing.T) {
	for token, want := range optionTable {
		f, err := Parse("example.org^$"+token, 1)
		require.NoErrorf(t, err, "token %q", token)

		uf, ok := f.(*UrlFilter)
		require.True(t, ok)

		assert.Equalf(t, want, uf.Options, "token %q should set exactly its own bit", token)
	}
}

func TestParseEmptyBodyWithOptionsMatchesEverything(t *testing.T) {
	f, err := Parse("$script", 1)
	require.NoError(t, err)

	uf, ok := f.(*UrlFilter)
	require.True(t, ok)
	assert.Empty(t, uf.Parts)
}

func TestParseMatchCaseAffectsLiteralCaseSensitivity(t *testing.T) {
	f, err := Parse("Example$matchcase", 1)
	require.NoError(t, err)

	uf, ok := f.(*UrlFilter)
	require.True(t, ok)
	require.Len(t, uf.Parts, 1)
	assert.True(t, uf.Parts[0].CaseSensitive)
}
