package extract

import (
	"bytes"

	"github.com/antchfx/xmlquery"
)

// xmlLinkAttrs are the attribute names worth scanning across the generic
// XML dialects a crawler encounters (Atom/RSS feeds, XML sitemaps, plain
// XHTML-as-XML) without hardcoding a single schema.
var xmlLinkAttrs = []string{"href", "src", "url", "link"}

// extractXML walks every element of an XML document collecting link-shaped
// attribute values and, for elements named after xmlLinkAttrs (e.g.
// <link>, <url>), their text content, including the text of any child
// elements.
func extractXML(body []byte, result *Result) bool {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return true
	}

	var walk func(n *xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		if n.Type == xmlquery.ElementNode {
			for _, attr := range n.Attr {
				if isXMLLinkAttr(attr.Name.Local) && attr.Value != "" {
					result.Add(Link{Target: attr.Value, Origin: OriginXML})
				}
			}
			if isXMLLinkAttr(n.Data) {
				if text := n.InnerText(); text != "" {
					result.Add(Link{Target: text, Origin: OriginXML})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return true
}

func isXMLLinkAttr(name string) bool {
	for _, a := range xmlLinkAttrs {
		if a == name {
			return true
		}
	}
	return false
}
