// Package ctxengine resolves ${path.with.dots[index]} template expressions
// against an execution's context snapshot (spec.md §4.3). This is
// deliberately a path-extraction walker, not a general expression
// language — the separate boolean/arithmetic condition grammar used by
// switch and while-loop conditions and state-machine guards lives in the
// condexpr package.
package ctxengine

import (
	"fmt"
	"strconv"
	"strings"
)

// pathSegment is either a field name (Key != "") or an array index
// (IsIndex == true).
type pathSegment struct {
	Key     string
	Index   int
	IsIndex bool
}

// parsePath splits "nodes[id].output.score" into segments:
// {Key:"nodes"} {Key:"id"} {Key:"output"} {Key:"score"}.
// Bracket contents that parse as an integer are treated as an array
// index; otherwise (e.g. a node id) they are treated as a map key, since
// node ids index into the "nodes" map rather than a slice.
func parsePath(path string) ([]pathSegment, error) {
	var segs []pathSegment
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			segs = append(segs, pathSegment{Key: buf.String()})
			buf.Reset()
		}
	}
	i := 0
	runes := []rune(path)
	for i < len(runes) {
		ch := runes[i]
		switch ch {
		case '.':
			flush()
			i++
		case '[':
			flush()
			end := strings.IndexRune(string(runes[i+1:]), ']')
			if end == -1 {
				return nil, fmt.Errorf("unterminated index in path %q", path)
			}
			inner := string(runes[i+1 : i+1+end])
			if n, err := strconv.Atoi(inner); err == nil {
				segs = append(segs, pathSegment{Index: n, IsIndex: true})
			} else {
				segs = append(segs, pathSegment{Key: inner})
			}
			i += end + 2
		default:
			buf.WriteRune(ch)
			i++
		}
	}
	flush()
	if len(segs) == 0 {
		return nil, fmt.Errorf("empty path")
	}
	return segs, nil
}

// resolvePath walks ctx following segs, returning (value, found).
func resolvePath(ctx map[string]any, segs []pathSegment) (any, bool) {
	var cur any = ctx
	for _, seg := range segs {
		if seg.IsIndex {
			arr, ok := cur.([]any)
			if !ok || seg.Index < 0 || seg.Index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.Index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg.Key]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// exprSpan is a single ${...} occurrence found inside a larger string.
type exprSpan struct {
	start, end int // byte offsets of the full "${...}" span
	path       string
	nullable   bool
}

func findExprSpans(s string) []exprSpan {
	var spans []exprSpan
	i := 0
	for {
		start := strings.Index(s[i:], "${")
		if start == -1 {
			break
		}
		start += i
		end := strings.Index(s[start:], "}")
		if end == -1 {
			break
		}
		end += start
		inner := s[start+2 : end]
		nullable := strings.HasSuffix(inner, "?")
		if nullable {
			inner = strings.TrimSuffix(inner, "?")
		}
		spans = append(spans, exprSpan{start: start, end: end + 1, path: strings.TrimSpace(inner), nullable: nullable})
		i = end + 1
	}
	return spans
}

// Resolve evaluates a template string against a context snapshot.
//
// If the entire (trimmed) string is exactly one ${...} expression, the
// resolved value's native type is returned (so ${nodes.a.output} yields a
// map, not its string form). Otherwise the string is treated as
// interpolated text and every ${...} occurrence is substituted with its
// string representation.
//
// An unresolved path is an error unless wrapped ${path?}, in which case
// it resolves to nil without error.
func Resolve(template string, ctx map[string]any) (any, error) {
	trimmed := strings.TrimSpace(template)
	spans := findExprSpans(trimmed)

	if len(spans) == 1 && spans[0].start == 0 && spans[0].end == len(trimmed) {
		return resolveOne(spans[0], ctx)
	}
	if len(spans) == 0 {
		return template, nil
	}

	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(trimmed[last:sp.start])
		v, err := resolveOne(sp, ctx)
		if err != nil {
			return nil, err
		}
		if v != nil {
			b.WriteString(fmt.Sprintf("%v", v))
		}
		last = sp.end
	}
	b.WriteString(trimmed[last:])
	return b.String(), nil
}

func resolveOne(sp exprSpan, ctx map[string]any) (any, error) {
	segs, err := parsePath(sp.path)
	if err != nil {
		return nil, err
	}
	v, found := resolvePath(ctx, segs)
	if !found {
		if sp.nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("unresolved template path %q", sp.path)
	}
	return v, nil
}

// ResolveBindings resolves every binding (name -> template) against ctx,
// returning the per-node input. Returns the first resolution error
// encountered (wrapped with the binding name).
func ResolveBindings(bindings map[string]string, ctx map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(bindings))
	for name, tmpl := range bindings {
		v, err := Resolve(tmpl, ctx)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
