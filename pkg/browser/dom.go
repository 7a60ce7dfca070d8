package browser

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ElementsScript lists the visible interactive elements of a page.
const ElementsScript = `() => {
    const elements = [];
    document.querySelectorAll('a, button, input, textarea, select, li').forEach((el, idx) => {
        const rect = el.getBoundingClientRect();
        if (rect.width > 0 && rect.height > 0) {
            elements.push({
                index: idx,
                tag: el.tagName,
                text: el.innerText?.slice(0, 80) || el.value || '',
                type: el.type || '',
                id: el.id || '',
                name: el.name || '',
                class: el.className || '',
                placeholder: el.placeholder || '',
                href: el.href || '',
                ariaLabel: el.ariaLabel || '',
            });
        }
    });
    return elements;
}`

// Element is one visible element as reported by ElementsScript.
type Element struct {
	Index       int    `json:"index"`
	Tag         string `json:"tag"`
	Text        string `json:"text"`
	Type        string `json:"type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Class       string `json:"class"`
	Placeholder string `json:"placeholder"`
	Href        string `json:"href"`
	AriaLabel   string `json:"ariaLabel"`
}

// VisibleElements runs ElementsScript on page.
func VisibleElements(page Page) ([]Element, error) {
	raw, err := page.Evaluate(ElementsScript)
	if err != nil {
		return nil, err
	}

	// Evaluate hands back generic maps; round-trip through JSON to type them
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "encode element list")
	}
	var decoded []struct {
		Element
		Class json.RawMessage `json:"class"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, errors.Wrap(err, "decode element list")
	}

	elements := make([]Element, 0, len(decoded))
	for _, d := range decoded {
		el := d.Element
		// className is an object on SVG elements
		_ = json.Unmarshal(d.Class, &el.Class)
		elements = append(elements, el)
	}
	return elements, nil
}
