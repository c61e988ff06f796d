package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/gdamore/tcell/v2"
)

type Token struct {
	Text  string
	Style tcell.Style
}

type StyledLine struct {
	Tokens []Token
}

type docEntry struct {
	version int
	lines   []StyledLine
}

// Highlighter tokenizes whole documents and caches the result keyed by
// document version, so a lookup during rendering never re-lexes content
// that has not changed.
type Highlighter struct {
	docs   map[string]docEntry
	lexers map[string]chroma.Lexer
}

func New() *Highlighter {
	return &Highlighter{
		docs:   make(map[string]docEntry),
		lexers: make(map[string]chroma.Lexer),
	}
}

func (h *Highlighter) Invalidate(path string) {
	delete(h.docs, path)
}

func (h *Highlighter) lexerFor(lang string) chroma.Lexer {
	if lx, ok := h.lexers[lang]; ok {
		return lx
	}
	lx := lexers.Get(lang)
	if lx == nil {
		lx = lexers.Fallback
	}
	lx = chroma.Coalesce(lx)
	h.lexers[lang] = lx
	return lx
}

// Lines returns per-line lexical tokens for the document at version.
// code is only consulted on a cache miss.
func (h *Highlighter) Lines(path, lang string, version int, code func() string) []StyledLine {
	if entry, ok := h.docs[path]; ok && entry.version == version {
		return entry.lines
	}
	lines := h.tokenize(lang, code())
	h.docs[path] = docEntry{version: version, lines: lines}
	return lines
}

// LineTokens returns the lexical tokens of a single line.
func (h *Highlighter) LineTokens(path, lang string, version, line int, code func() string) []Token {
	lines := h.Lines(path, lang, version, code)
	if line < 0 || line >= len(lines) {
		return nil
	}
	return lines[line].Tokens
}

func (h *Highlighter) tokenize(lang, code string) []StyledLine {
	raw := strings.Split(code, "\n")
	result := make([]StyledLine, len(raw))

	iter, err := h.lexerFor(lang).Tokenise(nil, code)
	if err != nil {
		for i, line := range raw {
			result[i] = StyledLine{Tokens: []Token{{Text: line, Style: tcell.StyleDefault}}}
		}
		return result
	}

	currentLine := 0
	for _, tok := range iter.Tokens() {
		style := tokenStyle(tok.Type)
		parts := strings.Split(tok.Value, "\n")
		for i, part := range parts {
			if i > 0 {
				currentLine++
			}
			if currentLine >= len(result) {
				break
			}
			if part != "" {
				result[currentLine].Tokens = append(result[currentLine].Tokens, Token{
					Text:  part,
					Style: style,
				})
			}
		}
	}
	return result
}

func DetectLanguage(filename string) string {
	lexer := lexers.Match(filename)
	if lexer == nil {
		return ""
	}
	config := lexer.Config()
	if config == nil {
		return ""
	}
	return config.Name
}

// SemanticStyle maps a language server semantic token type to a style.
// Unknown types return ok=false so the lexical style underneath shows
// through instead of painting the span default-colored.
func SemanticStyle(tokenType string) (tcell.Style, bool) {
	base := tcell.StyleDefault
	switch tokenType {
	case "namespace", "module":
		return base.Foreground(tcell.ColorDarkCyan), true
	case "type", "class", "enum", "interface", "struct", "typeParameter":
		return base.Foreground(tcell.ColorFuchsia), true
	case "parameter", "variable", "property":
		return base.Foreground(tcell.ColorSilver), true
	case "enumMember":
		return base.Foreground(tcell.ColorDarkCyan), true
	case "function", "method", "macro":
		return base.Foreground(tcell.ColorYellow), true
	case "keyword", "modifier":
		return base.Foreground(tcell.ColorBlue).Bold(true), true
	case "comment":
		return base.Foreground(tcell.ColorGray).Italic(true), true
	case "string":
		return base.Foreground(tcell.ColorGreen), true
	case "number":
		return base.Foreground(tcell.ColorDarkCyan), true
	case "operator":
		return base.Foreground(tcell.ColorWhite), true
	case "decorator":
		return base.Foreground(tcell.ColorFuchsia), true
	default:
		return base, false
	}
}

func tokenStyle(t chroma.TokenType) tcell.Style {
	base := tcell.StyleDefault

	switch {
	case t == chroma.Keyword || t == chroma.KeywordConstant || t == chroma.KeywordDeclaration ||
		t == chroma.KeywordNamespace || t == chroma.KeywordReserved || t == chroma.KeywordType:
		return base.Foreground(tcell.ColorBlue).Bold(true)

	case t == chroma.NameBuiltin || t == chroma.NameBuiltinPseudo:
		return base.Foreground(tcell.ColorBlue)

	case t == chroma.LiteralString || t == chroma.LiteralStringAffix || t == chroma.LiteralStringBacktick ||
		t == chroma.LiteralStringChar || t == chroma.LiteralStringDouble || t == chroma.LiteralStringSingle ||
		t == chroma.LiteralStringHeredoc || t == chroma.LiteralStringInterpol ||
		t == chroma.LiteralStringOther || t == chroma.LiteralStringRegex:
		return base.Foreground(tcell.ColorGreen)

	case t == chroma.Comment || t == chroma.CommentMultiline || t == chroma.CommentSingle ||
		t == chroma.CommentSpecial || t == chroma.CommentPreproc || t == chroma.CommentPreprocFile:
		return base.Foreground(tcell.ColorGray).Italic(true)

	case t == chroma.LiteralNumber || t == chroma.LiteralNumberBin || t == chroma.LiteralNumberFloat ||
		t == chroma.LiteralNumberHex || t == chroma.LiteralNumberInteger || t == chroma.LiteralNumberIntegerLong ||
		t == chroma.LiteralNumberOct:
		return base.Foreground(tcell.ColorDarkCyan)

	case t == chroma.NameFunction || t == chroma.NameFunctionMagic:
		return base.Foreground(tcell.ColorYellow)

	case t == chroma.NameClass || t == chroma.NameException || t == chroma.NameDecorator:
		return base.Foreground(tcell.ColorFuchsia)

	case t == chroma.Operator || t == chroma.OperatorWord:
		return base.Foreground(tcell.ColorWhite)

	case t == chroma.Punctuation:
		return base.Foreground(tcell.ColorWhite)

	default:
		return base.Foreground(tcell.ColorWhite)
	}
}
