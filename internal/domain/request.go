package domain

import (
	"encoding/json"
	"fmt"
)

// Request names the document to print: inline template content or a remote URL.
type Request struct {
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Validate enforces that exactly one of Content and URL is set.
func (r Request) Validate() error {
	switch {
	case r.Content == "" && r.URL == "":
		return fmt.Errorf("%w: one of content or url is required", ErrInvalidRequest)
	case r.Content != "" && r.URL != "":
		return fmt.Errorf("%w: content and url are mutually exclusive", ErrInvalidRequest)
	}
	return nil
}

// File is a batch entry: a Request plus any metadata the caller attached to it.
type File struct {
	Request
	Fields map[string]any `json:"-"`
}

// UnmarshalJSON keeps every key other than content and url in Fields.
func (f *File) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = File{}
	for key, val := range raw {
		switch key {
		case "content":
			if err := json.Unmarshal(val, &f.Content); err != nil {
				return fmt.Errorf("content: %w", err)
			}
		case "url":
			if err := json.Unmarshal(val, &f.URL); err != nil {
				return fmt.Errorf("url: %w", err)
			}
		default:
			var v any
			if err := json.Unmarshal(val, &v); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			if f.Fields == nil {
				f.Fields = make(map[string]any)
			}
			f.Fields[key] = v
		}
	}
	return nil
}

// MarshalJSON flattens Fields next to content and url.
func (f File) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.flatten())
}

func (f File) flatten() map[string]any {
	out := make(map[string]any, len(f.Fields)+2)
	for k, v := range f.Fields {
		out[k] = v
	}
	if f.Content != "" {
		out["content"] = f.Content
	}
	if f.URL != "" {
		out["url"] = f.URL
	}
	return out
}

// Result is one batch output: the original file and its PDF bytes.
type Result struct {
	File
	Buffer []byte
}

// MarshalJSON encodes the result as the file's fields plus a base64 "buffer".
func (r Result) MarshalJSON() ([]byte, error) {
	out := r.File.flatten()
	out["buffer"] = r.Buffer
	return json.Marshal(out)
}
