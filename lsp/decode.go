package lsp

import "encoding/json"

// DecodeCompletions accepts the two shapes servers send for
// textDocument/completion: a CompletionList or a bare item array.
func DecodeCompletions(raw json.RawMessage) []CompletionItem {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list CompletionList
	if err := json.Unmarshal(raw, &list); err == nil && list.Items != nil {
		return list.Items
	}
	var items []CompletionItem
	if err := json.Unmarshal(raw, &items); err == nil {
		return items
	}
	return nil
}

// DecodeLocations accepts Location, []Location and []LocationLink results
// from textDocument/definition.
func DecodeLocations(raw json.RawMessage) []Location {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var one Location
	if err := json.Unmarshal(raw, &one); err == nil && one.URI != "" {
		return []Location{one}
	}
	var many []Location
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 && many[0].URI != "" {
		return many
	}
	var links []struct {
		TargetURI   string `json:"targetUri"`
		TargetRange Range  `json:"targetSelectionRange"`
	}
	if err := json.Unmarshal(raw, &links); err == nil {
		locs := make([]Location, 0, len(links))
		for _, l := range links {
			if l.TargetURI != "" {
				locs = append(locs, Location{URI: l.TargetURI, Range: l.TargetRange})
			}
		}
		return locs
	}
	return nil
}

// HoverText flattens a hover result to a display string. Servers send
// MarkupContent, a bare string, a MarkedString object or arrays of either.
func HoverText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var h Hover
	if err := json.Unmarshal(raw, &h); err != nil {
		return ""
	}
	return flattenHover(h.Contents)
}

func flattenHover(v interface{}) string {
	switch c := v.(type) {
	case string:
		return c
	case map[string]interface{}:
		if s, ok := c["value"].(string); ok {
			return s
		}
	case []interface{}:
		out := ""
		for _, item := range c {
			part := flattenHover(item)
			if part == "" {
				continue
			}
			if out != "" {
				out += "\n"
			}
			out += part
		}
		return out
	}
	return ""
}
