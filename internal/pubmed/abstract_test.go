package pubmed

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func articleXML(abstract string) string {
	return `<?xml version="1.0" ?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2024//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_240101.dtd">
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation Status="MEDLINE" Owner="NLM">
      <PMID Version="1">12345</PMID>
      <Article PubModel="Print">
        <ArticleTitle>A title</ArticleTitle>` + abstract + `
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`
}

func TestParseAbstractSingleBlock(t *testing.T) {
	got, err := parseAbstract(strings.NewReader(articleXML(
		`<Abstract><AbstractText>Plain abstract text.</AbstractText></Abstract>`)))
	require.NoError(t, err)
	assert.Equal(t, "Plain abstract text.", got)
}

func TestParseAbstractLabeledSections(t *testing.T) {
	got, err := parseAbstract(strings.NewReader(articleXML(`<Abstract>
<AbstractText Label="BACKGROUND" NlmCategory="BACKGROUND">Why.</AbstractText>
<AbstractText Label="RESULTS" NlmCategory="RESULTS">What <i>in vivo</i> showed.</AbstractText>
<AbstractText Label="CONCLUSIONS">So.</AbstractText>
</Abstract>`)))
	require.NoError(t, err)
	assert.Equal(t, "BACKGROUND: Why.\nRESULTS: What in vivo showed.\nCONCLUSIONS: So.", got)
}

func TestParseAbstractSingleLabeledSection(t *testing.T) {
	got, err := parseAbstract(strings.NewReader(articleXML(
		`<Abstract><AbstractText Label="OBJECTIVE">Only one.</AbstractText></Abstract>`)))
	require.NoError(t, err)
	assert.Equal(t, "OBJECTIVE: Only one.", got)
}

func TestParseAbstractMissing(t *testing.T) {
	got, err := parseAbstract(strings.NewReader(articleXML("")))
	require.NoError(t, err)
	assert.Equal(t, AbstractNotAvailable, got)

	for _, abstract := range []string{
		"<Abstract></Abstract>",
		"<Abstract><AbstractText/></Abstract>",
		"<Abstract><AbstractText>   </AbstractText></Abstract>",
		"<Abstract><AbstractText></AbstractText><AbstractText>\n</AbstractText></Abstract>",
	} {
		got, err = parseAbstract(strings.NewReader(articleXML(abstract)))
		require.NoError(t, err)
		assert.Equal(t, AbstractNotAvailable, got, abstract)
	}
}

func TestParseAbstractErrors(t *testing.T) {
	_, err := parseAbstract(strings.NewReader("<PubmedArticleSet></PubmedArticleSet>"))
	assert.True(t, errors.Is(err, ErrAbstractUnavailable))

	_, err = parseAbstract(strings.NewReader("not xml"))
	assert.True(t, errors.Is(err, ErrAbstractUnavailable))

	_, err = parseAbstract(strings.NewReader("<eFetchResult><ERROR>bad id</ERROR></eFetchResult>"))
	assert.True(t, errors.Is(err, ErrAbstractUnavailable))
}
