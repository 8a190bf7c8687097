package models

import "encoding/json"

// PageMetadata is the SEO payload returned by the metadata API for one page.
// An empty field means the API did not provide it.
type PageMetadata struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Image       string `json:"image,omitempty" yaml:"image,omitempty"`
	Keywords    string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// UnmarshalJSON keeps string values only. A known key carrying a number,
// object or null is treated as absent instead of failing the whole payload.
func (m *PageMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	pick := func(key string) string {
		v, ok := raw[key]
		if !ok {
			return ""
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return s
	}

	*m = PageMetadata{
		Title:       pick("title"),
		Description: pick("description"),
		Image:       pick("image"),
		Keywords:    pick("keywords"),
	}
	return nil
}

