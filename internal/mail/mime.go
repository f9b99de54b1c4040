package mail

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// MimeNode is a closed representation of a message body-part tree, built by
// the connector from the server's BODYSTRUCTURE response. A node is either
// a Part (leaf) or a Multipart holding an ordered list of children.
type MimeNode interface {
	isMimeNode()
}

// Part is a leaf body part.
type Part struct {
	MediaType   string // "text", "image", "application", ...
	Subtype     string // "plain", "pdf", ...
	Encoding    string // content-transfer-encoding, lower-cased
	Size        uint32
	Filename    string
	Disposition string // "attachment", "inline" or "" when the server sent none
}

// Multipart is a composite body part.
type Multipart struct {
	Subtype  string
	Children []MimeNode
}

func (*Part) isMimeNode()      {}
func (*Multipart) isMimeNode() {}

// Walk visits every node depth-first, passing its dot-joined 1-based part
// number. A leaf root is numbered "1"; a multipart root carries no number
// of its own and its children are numbered "1", "2", ... The walk stops
// when fn returns false.
func Walk(root MimeNode, fn func(path string, node MimeNode) bool) {
	if root == nil {
		return
	}
	if m, ok := root.(*Multipart); ok {
		for i, child := range m.Children {
			if !walk(child, strconv.Itoa(i+1), fn) {
				return
			}
		}
		return
	}
	fn("1", root)
}

func walk(node MimeNode, path string, fn func(string, MimeNode) bool) bool {
	if !fn(path, node) {
		return false
	}
	if m, ok := node.(*Multipart); ok {
		for i, child := range m.Children {
			if !walk(child, path+"."+strconv.Itoa(i+1), fn) {
				return false
			}
		}
	}
	return true
}

// PartAt returns the leaf at the given dot-joined part number, or nil.
func PartAt(root MimeNode, path string) *Part {
	var found *Part
	Walk(root, func(p string, node MimeNode) bool {
		if p != path {
			return true
		}
		if leaf, ok := node.(*Part); ok {
			found = leaf
		}
		return false
	})
	return found
}

// Attachment describes one downloadable body part.
type Attachment struct {
	PartNumber string
	MediaType  string // full "type/subtype"
	Size       uint32
	Filename   string
}

// FindAttachments enumerates attachment parts in depth-first order. A leaf
// qualifies when its disposition is explicitly "attachment", or when it is
// neither text nor multipart and carries no explicit disposition.
func FindAttachments(root MimeNode) []Attachment {
	var out []Attachment
	Walk(root, func(path string, node MimeNode) bool {
		p, ok := node.(*Part)
		if !ok {
			return true
		}
		explicit := strings.EqualFold(p.Disposition, "attachment")
		implicit := p.Disposition == "" && p.MediaType != "text"
		if explicit || implicit {
			out = append(out, Attachment{
				PartNumber: path,
				MediaType:  p.MediaType + "/" + p.Subtype,
				Size:       p.Size,
				Filename:   p.Filename,
			})
		}
		return true
	})
	return out
}

// DecodeContent decodes body bytes per their content-transfer-encoding.
// Quoted-printable decoding drops malformed escapes and keeps going;
// base64 decoding falls back to the raw bytes when the payload is not
// valid base64. Unknown encodings pass through unchanged.
func DecodeContent(b []byte, encoding string) []byte {
	switch strings.ToLower(encoding) {
	case "quoted-printable":
		return decodeQuotedPrintable(b)
	case "base64":
		s := strings.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, string(b))
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return b
		}
		return decoded
	default:
		return b
	}
}

func decodeQuotedPrintable(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '=' {
			out = append(out, b[i])
			continue
		}
		// soft line break
		if i+1 < len(b) && b[i+1] == '\n' {
			i++
			continue
		}
		if i+2 < len(b) && b[i+1] == '\r' && b[i+2] == '\n' {
			i += 2
			continue
		}
		if i+2 < len(b) {
			hi, okHi := fromHex(b[i+1])
			lo, okLo := fromHex(b[i+2])
			if okHi && okLo {
				out = append(out, hi<<4|lo)
				i += 2
				continue
			}
		}
		// malformed escape, dropped
	}
	return out
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// ExtractPrimaryText decodes the message's primary text content. The first
// text leaf in the tree supplies the transfer encoding. A multipart
// BODY[TEXT] opens with the boundary line and the first part's headers;
// both are stripped, and anything after the next boundary marker is cut
// off. limit caps the result in runes (1000 is the inline-preview bound);
// limit <= 0 leaves it unbounded.
func ExtractPrimaryText(root MimeNode, body []byte, limit int) string {
	encoding := ""
	Walk(root, func(_ string, node MimeNode) bool {
		if p, ok := node.(*Part); ok && p.MediaType == "text" {
			encoding = p.Encoding
			return false
		}
		return true
	})

	text := string(DecodeContent(body, encoding))
	if strings.HasPrefix(text, "--") {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			return ""
		}
		text = skipHeaderBlock(text[idx+1:])
	}
	if strings.HasPrefix(text, "--") {
		text = ""
	} else if idx := strings.Index(text, "\n--"); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	if limit > 0 {
		if runes := []rune(text); len(runes) > limit {
			text = string(runes[:limit])
		}
	}
	return text
}

// skipHeaderBlock drops everything through the first blank line.
func skipHeaderBlock(s string) string {
	for {
		idx := strings.IndexByte(s, '\n')
		if idx < 0 {
			return ""
		}
		line := strings.TrimRight(s[:idx], "\r")
		s = s[idx+1:]
		if line == "" {
			return s
		}
	}
}
