// Package mailparse turns raw email bytes into a flat text body plus a
// structured header view. It never fails fatally: malformed MIME degrades
// to a permissive byte-to-text decode with no header view.
package mailparse

import (
	"bytes"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // registers charset decoding for message bodies
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

// Normalize parses raw bytes as a MIME message, concatenating the text/plain
// payloads and the extracted text of text/html payloads into one
// whitespace-collapsed string. When MIME parsing fails it falls back to a
// permissive decode of the raw input and returns a nil header view.
func Normalize(raw []byte) (string, *HeaderView) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		log.Printf("[MAILPARSE] MIME parse failed, falling back to raw decode: %v", err)
		return NormalizeText(decodeBytes(raw)), nil
	}

	var body strings.Builder
	collectText(entity, &body)

	return NormalizeText(body.String()), newHeaderView(entity.Header)
}

// NormalizeText collapses all internal whitespace runs to single spaces
// and trims the result.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// collectText walks a MIME entity depth-first, appending the text rendering
// of every text/plain and text/html leaf to b.
func collectText(entity *message.Entity, b *strings.Builder) {
	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return
			}
			if err != nil {
				// Truncated or corrupt part; keep whatever was extracted so far.
				return
			}
			collectText(part, b)
		}
	}

	contentType, _, err := entity.Header.ContentType()
	if err != nil {
		contentType = "text/plain"
	}

	switch {
	case contentType == "text/plain" || contentType == "":
		payload, _ := io.ReadAll(entity.Body)
		b.Write(payload)
		b.WriteByte(' ')
	case contentType == "text/html":
		payload, _ := io.ReadAll(entity.Body)
		b.WriteString(ExtractHTMLText(string(payload)))
		b.WriteByte(' ')
	}
}

// ExtractHTMLText strips tags from an HTML document, returning the visible
// text with single-space separators. Script and style contents are dropped.
func ExtractHTMLText(doc string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	var b strings.Builder
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isInvisibleTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isInvisibleTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isInvisibleTag(name string) bool {
	return name == "script" || name == "style"
}

// decodeBytes converts arbitrary bytes to a string without ever failing:
// valid UTF-8 passes through, anything else is decoded as Latin-1, which
// maps every byte to a rune.
func decodeBytes(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// Latin-1 decoding cannot fail, but stay permissive regardless.
		return string(raw)
	}
	return string(decoded)
}
