package chat

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ThinkFilter removes reasoning spans from a token stream. A span opens
// at "<think>" and closes at "</think>"; neither marker is forwarded. A
// chunk that is exactly "\n\n" right after a close is dropped as well.
// The zero value is ready to use.
type ThinkFilter struct {
	thinking   bool
	justClosed bool
}

// Feed consumes one chunk and returns the visible part, if any.
func (f *ThinkFilter) Feed(chunk string) (string, bool) {
	if f.justClosed {
		f.justClosed = false
		if chunk == "\n\n" {
			return "", false
		}
	}

	var out strings.Builder
	rest := chunk
	for rest != "" {
		if f.thinking {
			i := strings.Index(rest, thinkClose)
			if i < 0 {
				return out.String(), out.Len() > 0
			}
			rest = rest[i+len(thinkClose):]
			f.thinking = false
			if rest == "" || rest == "\n\n" {
				f.justClosed = rest == ""
				rest = ""
			}
			continue
		}

		i := strings.Index(rest, thinkOpen)
		if i < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:i])
		rest = rest[i+len(thinkOpen):]
		f.thinking = true
	}
	return out.String(), out.Len() > 0
}
