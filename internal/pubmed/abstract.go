package pubmed

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Abstract placeholders used when efetch cannot provide one.
const (
	AbstractNotAvailable   = "Abstract not available"
	AbstractRetrievalError = "Error retrieving abstract"
)

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Abstract *articleAbstract `xml:"MedlineCitation>Article>Abstract"`
}

type articleAbstract struct {
	Sections []abstractText `xml:"AbstractText"`
}

// abstractText collects the character data of an AbstractText element,
// including text nested in inline markup such as <i> or <sup>.
type abstractText struct {
	Label string
	Text  string
}

func (a *abstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			a.Label = attr.Value
		}
	}
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				a.Text = b.String()
				return nil
			}
			depth--
		}
	}
}

// parseAbstract extracts the abstract of the first article in an efetch XML
// document. Labeled sections are rendered as "LABEL: text", one per line.
func parseAbstract(r io.Reader) (string, error) {
	var set pubmedArticleSet
	if err := xml.NewDecoder(r).Decode(&set); err != nil {
		return "", fmt.Errorf("%w: decode efetch xml: %w", ErrAbstractUnavailable, err)
	}
	if len(set.Articles) == 0 {
		return "", fmt.Errorf("%w: no PubmedArticle in response", ErrAbstractUnavailable)
	}

	abs := set.Articles[0].Abstract
	if abs == nil || len(abs.Sections) == 0 {
		return AbstractNotAvailable, nil
	}

	lines := make([]string, 0, len(abs.Sections))
	for _, s := range abs.Sections {
		if s.Label != "" {
			lines = append(lines, s.Label+": "+s.Text)
			continue
		}
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		lines = append(lines, s.Text)
	}
	if len(lines) == 0 {
		return AbstractNotAvailable, nil
	}
	return strings.Join(lines, "\n"), nil
}
