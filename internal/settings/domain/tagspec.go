package settings

import (
	"fmt"
	"strconv"
	"strings"
)

// TagSpec is a PLC tag selected for logging, optionally read as an array.
type TagSpec struct {
	Name string
	// Elements is the declared array length; zero means a scalar tag.
	Elements int
}

// ParseTagSpec parses "Name" or "Name{n}".
func ParseTagSpec(text string) (TagSpec, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TagSpec{}, ErrEmptyTagName
	}
	open := strings.LastIndex(text, "{")
	if open < 0 || !strings.HasSuffix(text, "}") {
		return TagSpec{Name: text}, nil
	}
	name := strings.TrimSpace(text[:open])
	if name == "" {
		return TagSpec{}, ErrEmptyTagName
	}
	n, err := ParseArity(text[open+1 : len(text)-1])
	if err != nil {
		return TagSpec{}, fmt.Errorf("%w: %q", err, text)
	}
	return TagSpec{Name: name, Elements: n}, nil
}

// ParseArity parses an array length entry. Blank means scalar.
func ParseArity(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, ErrInvalidArity
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil || n <= 0 {
		return 0, ErrInvalidArity
	}
	return n, nil
}

// ParseTagSelection parses a full selection. One bad entry rejects all of it.
func ParseTagSelection(items []string) ([]TagSpec, error) {
	specs := make([]TagSpec, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		spec, err := ParseTagSpec(item)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[spec.Name]; dup {
			continue
		}
		seen[spec.Name] = struct{}{}
		specs = append(specs, spec)
	}
	return specs, nil
}

// IsArray reports whether the tag is read as an array.
func (t TagSpec) IsArray() bool {
	return t.Elements > 0
}

// Validate checks the name and arity.
func (t TagSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyTagName
	}
	if t.Elements < 0 {
		return ErrInvalidArity
	}
	return nil
}

// ElementName returns the column name of array element i.
func (t TagSpec) ElementName(i int) string {
	return t.Name + "[" + strconv.Itoa(i) + "]"
}

// Expand lists the addressable columns of the tag.
func (t TagSpec) Expand() []string {
	if !t.IsArray() {
		return []string{t.Name}
	}
	names := make([]string, t.Elements)
	for i := range names {
		names[i] = t.ElementName(i)
	}
	return names
}

func (t TagSpec) String() string {
	if !t.IsArray() {
		return t.Name
	}
	return t.Name + "{" + strconv.Itoa(t.Elements) + "}"
}

// MarshalText encodes the spec in its "Name{n}" form.
func (t TagSpec) MarshalText() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes the "Name{n}" form.
func (t *TagSpec) UnmarshalText(data []byte) error {
	spec, err := ParseTagSpec(string(data))
	if err != nil {
		return err
	}
	*t = spec
	return nil
}
