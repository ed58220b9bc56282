package domain

import (
	"errors"
	"strings"
)

type ContentKind string

const (
	KindText       ContentKind = "text"
	KindAttachment ContentKind = "attachment"
	KindSticker    ContentKind = "sticker"
	KindForward    ContentKind = "forward"
)

var ErrEmptyContent = errors.New("message, media, or forward is required")

// Content is the payload of a message. Any combination of kinds may be
// present, but never none of them.
type Content struct {
	Text       string
	Attachment *Attachment
	Sticker    *Sticker
	Forward    *Preview
}

// Normalize trims text and drops descriptors that carry no URL.
func (c Content) Normalize() Content {
	c.Text = strings.TrimSpace(c.Text)
	if c.Attachment != nil && strings.TrimSpace(c.Attachment.URL) == "" {
		c.Attachment = nil
	}
	if c.Sticker != nil && strings.TrimSpace(c.Sticker.URL) == "" {
		c.Sticker = nil
	}
	return c
}

func (c Content) Kinds() []ContentKind {
	var kinds []ContentKind
	if c.Text != "" {
		kinds = append(kinds, KindText)
	}
	if c.Attachment != nil {
		kinds = append(kinds, KindAttachment)
	}
	if c.Sticker != nil {
		kinds = append(kinds, KindSticker)
	}
	if c.Forward != nil {
		kinds = append(kinds, KindForward)
	}
	return kinds
}

func (c Content) Validate() error {
	if len(c.Kinds()) == 0 {
		return ErrEmptyContent
	}
	return nil
}
