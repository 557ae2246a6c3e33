// Package vcard renders a card and its owner as a vCard 3.0 contact.
package vcard

import (
	"bytes"
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/idcard/backend/internal/models"
)

const (
	ContentType = "text/vcard; charset=utf-8"

	// RFC 6350 3.2: lines SHOULD NOT be longer than 75 octets.
	maxLineOctets = 75
)

// Photo is an avatar image ready to embed.
type Photo struct {
	Data []byte
	// Type is the vCard image type: JPEG, PNG, GIF or WEBP.
	Type string
}

// Build renders the vCard for card as owned by user. photo may be nil, in
// which case no PHOTO property is written.
func Build(card models.Card, user models.PublicUser, photo *Photo) []byte {
	var b bytes.Buffer

	name := strings.TrimSpace(user.FullName)
	if name == "" {
		name = user.UserName
	}
	given, family := splitName(name)

	writeLine(&b, "BEGIN:VCARD")
	writeLine(&b, "VERSION:3.0")
	writeLine(&b, "N:"+escape(family)+";"+escape(given)+";;;")
	writeLine(&b, "FN:"+escape(name))
	if card.Company != "" {
		writeLine(&b, "ORG:"+escape(card.Company))
	}
	if card.Job != "" {
		writeLine(&b, "TITLE:"+escape(card.Job))
	}
	if card.Phone != "" {
		writeLine(&b, "TEL;TYPE=CELL:"+escape(card.Phone))
	}
	if user.Email != "" {
		writeLine(&b, "EMAIL;TYPE=INTERNET:"+escape(user.Email))
	}
	if card.WebSite != "" {
		writeLine(&b, "URL:"+card.WebSite)
	}
	if card.Address != "" {
		writeLine(&b, "ADR;TYPE=WORK:;;"+escape(card.Address)+";;;;")
	}
	if card.Bio != "" {
		writeLine(&b, "NOTE:"+escape(card.Bio))
	}
	for _, l := range card.SocialLinks {
		if l.URL == "" {
			continue
		}
		writeLine(&b, "X-SOCIALPROFILE;TYPE="+paramValue(l.Platform)+":"+l.URL)
	}
	if photo != nil && len(photo.Data) > 0 && photo.Type != "" {
		writeLine(&b, "PHOTO;ENCODING=b;TYPE="+photo.Type+":"+base64.StdEncoding.EncodeToString(photo.Data))
	}
	writeLine(&b, "END:VCARD")

	return b.Bytes()
}

// Filename is the download name offered for the card's vCard.
func Filename(user models.PublicUser) string {
	base := user.UserName
	if base == "" {
		base = "contact"
	}
	return base + ".vcf"
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`,`, `\,`,
	`;`, `\;`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
)

func escape(s string) string {
	return textEscaper.Replace(s)
}

// paramValue keeps parameter values to characters that need no quoting.
func paramValue(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "other"
	}
	return b.String()
}

// splitName treats the last word as the family name.
func splitName(full string) (given, family string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

// writeLine writes one content line, folding it at maxLineOctets without
// splitting a UTF-8 sequence. Invalid UTF-8 is replaced with U+FFFD.
func writeLine(b *bytes.Buffer, line string) {
	line = strings.ToValidUTF8(line, "\uFFFD")
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
		// Continuation lines start with a space, which counts toward the limit.
		limit = maxLineOctets - 1
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}
