package event

import (
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	SegmentText  = "text"
	SegmentAt    = "at"
	SegmentReply = "reply"
	SegmentImage = "image"
	SegmentFile  = "file"
)

// Segment is one typed piece of message content.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func (s Segment) String() string {
	switch s.Type {
	case SegmentImage:
		return "Image"
	case SegmentFile:
		return "File"
	}
	return fmt.Sprintf("%s(%v)", s.Type, s.Data)
}

// Str returns data[key] as a string whatever its JSON type was.
func (s Segment) Str(key string) string {
	switch v := s.Data[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns data[key] as an integer, 0 when missing or not numeric.
func (s Segment) Int(key string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s.Str(key)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func Text(text string) Segment {
	return Segment{Type: SegmentText, Data: map[string]any{"text": text}}
}

func At(userID int64) Segment {
	return Segment{Type: SegmentAt, Data: map[string]any{"qq": strconv.FormatInt(userID, 10)}}
}

func Reply(messageID int64) Segment {
	return Segment{Type: SegmentReply, Data: map[string]any{"id": strconv.FormatInt(messageID, 10)}}
}

// Image embeds the whole content of r as a base64 payload.
func Image(r io.Reader) (Segment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Segment{}, fmt.Errorf("read image: %w", err)
	}
	return Segment{Type: SegmentImage, Data: map[string]any{
		"file": "base64://" + base64.StdEncoding.EncodeToString(data),
	}}, nil
}

func File(path string) Segment {
	return Segment{Type: SegmentFile, Data: map[string]any{"file": path}}
}

// Chain is an ordered message body.
type Chain []Segment

func (c Chain) String() string {
	parts := make([]string, len(c))
	for i, seg := range c {
		parts[i] = seg.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// PlainText joins the trimmed, non-empty text segments with single spaces.
func (c Chain) PlainText() string {
	var parts []string
	for _, seg := range c {
		if seg.Type != SegmentText {
			continue
		}
		if t := strings.TrimSpace(seg.Str("text")); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Mentions lists the user ids mentioned by at segments. "@all" is skipped.
func (c Chain) Mentions() []int64 {
	var ids []int64
	for _, seg := range c {
		if seg.Type != SegmentAt {
			continue
		}
		if id := seg.Int("qq"); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// ReplyID returns the referenced message id. A reply segment, when present,
// is always the first one.
func (c Chain) ReplyID() (int64, bool) {
	if len(c) == 0 || c[0].Type != SegmentReply {
		return 0, false
	}
	id := c[0].Int("id")
	return id, id != 0
}

func (c Chain) ImageURLs() []string {
	var urls []string
	for _, seg := range c {
		if seg.Type == SegmentImage {
			if u := seg.Str("url"); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

// FileID returns the id of a file message. Files always travel alone.
func (c Chain) FileID() (string, bool) {
	if len(c) == 0 || c[0].Type != SegmentFile {
		return "", false
	}
	id := c[0].Str("file_id")
	return id, id != ""
}
