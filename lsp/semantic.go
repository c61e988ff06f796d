package lsp

// SemanticSpan is one decoded semantic token, still in wire coordinates:
// StartChar and Length count UTF-16 code units.
type SemanticSpan struct {
	Line      int
	StartChar int
	Length    int
	Type      string
	Modifiers uint32
}

// DecodeSemanticTokens expands the delta-encoded quintuple stream using
// the server's legend. Token types outside the legend and truncated
// trailing data are skipped rather than failing the whole set.
func DecodeSemanticTokens(data []uint32, legend SemanticTokensLegend) []SemanticSpan {
	spans := make([]SemanticSpan, 0, len(data)/5)
	line := 0
	char := 0
	for i := 0; i+4 < len(data); i += 5 {
		deltaLine := int(data[i])
		deltaStart := int(data[i+1])
		length := int(data[i+2])
		typeIdx := int(data[i+3])
		mods := data[i+4]

		if deltaLine > 0 {
			line += deltaLine
			char = deltaStart
		} else {
			char += deltaStart
		}

		if typeIdx >= len(legend.TokenTypes) || length == 0 {
			continue
		}
		spans = append(spans, SemanticSpan{
			Line:      line,
			StartChar: char,
			Length:    length,
			Type:      legend.TokenTypes[typeIdx],
			Modifiers: mods,
		})
	}
	return spans
}
