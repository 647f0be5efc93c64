// Package extract pulls a JSON object out of free-form model output
// using a fixed layered strategy: fenced code block first, then a
// first-to-last-brace slice, then failure. Planning and self-correction
// responses are prose-wrapped more often than not, so callers should
// treat extraction failure as an expected condition, not a bug.
package extract

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrNoJSON indicates no parseable JSON object was found in the text.
var ErrNoJSON = errors.New("no JSON object found in text")

// JSONObject extracts the first valid JSON object from text.
func JSONObject(input string) ([]byte, error) {
	if raw := fromFencedBlock(input); raw != nil {
		return raw, nil
	}
	if raw := fromBraceSlice(input); raw != nil {
		return raw, nil
	}
	return nil, ErrNoJSON
}

// fromFencedBlock walks the markdown AST and returns the content of the
// first fenced code block that holds a valid JSON object. Blocks tagged
// with a non-JSON language are skipped; untagged blocks are tried.
func fromFencedBlock(input string) []byte {
	source := []byte(input)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var found []byte
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || found != nil {
			return ast.WalkContinue, nil
		}

		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		lang := strings.ToLower(string(fenced.Language(source)))
		if lang != "" && lang != "json" {
			return ast.WalkContinue, nil
		}

		var sb strings.Builder
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(source))
		}

		if raw := validObject(sb.String()); raw != nil {
			found = raw
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	return found
}

// fromBraceSlice slices from the first '{' to the last '}' and accepts
// the result only if it is a valid JSON object.
func fromBraceSlice(input string) []byte {
	start := strings.IndexByte(input, '{')
	end := strings.LastIndexByte(input, '}')
	if start < 0 || end <= start {
		return nil
	}
	return validObject(input[start : end+1])
}

func validObject(candidate string) []byte {
	trimmed := strings.TrimSpace(candidate)
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil
	}
	return []byte(trimmed)
}
