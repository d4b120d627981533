package campaign

import "strings"

// Source names a data provider, or the merge of several.
type Source string

const (
	SourceMeta        Source = "meta"
	SourceTripleWhale Source = "tripleWhale"
	SourceMerged      Source = "merged"
)

// Label is the human name used to prefix per-source warnings.
func (s Source) Label() string {
	switch s {
	case SourceMeta:
		return "Meta"
	case SourceTripleWhale:
		return "Triple Whale"
	default:
		return string(s)
	}
}

// SourceIDs records which source(s) contributed to a record, by source-native id.
type SourceIDs struct {
	Meta        string `json:"meta,omitempty"`
	TripleWhale string `json:"tripleWhale,omitempty"`
}

// Kind reports meta, tripleWhale, merged, or "" when no id is set.
func (s SourceIDs) Kind() Source {
	switch {
	case s.Meta != "" && s.TripleWhale != "":
		return SourceMerged
	case s.Meta != "":
		return SourceMeta
	case s.TripleWhale != "":
		return SourceTripleWhale
	}
	return ""
}

// Count returns how many sources are tagged.
func (s SourceIDs) Count() int {
	n := 0
	if s.Meta != "" {
		n++
	}
	if s.TripleWhale != "" {
		n++
	}
	return n
}

// Union keeps every id set on either side; the receiver wins on conflict.
func (s SourceIDs) Union(o SourceIDs) SourceIDs {
	if s.Meta == "" {
		s.Meta = o.Meta
	}
	if s.TripleWhale == "" {
		s.TripleWhale = o.TripleWhale
	}
	return s
}

// Ref is the tagged identity of a campaign record: a single source id, or
// the set of ids a merged record was built from.
type Ref struct {
	Source Source    `json:"source"`
	IDs    SourceIDs `json:"ids"`
}

// Key is stable across polls whether or not the record matched on the other
// source: the Meta id wins when present.
func (r Ref) Key() string {
	if r.IDs.Meta != "" {
		return string(SourceMeta) + ":" + r.IDs.Meta
	}
	if r.IDs.TripleWhale != "" {
		return string(SourceTripleWhale) + ":" + r.IDs.TripleWhale
	}
	return ""
}

// ParseRefKey is the inverse of Ref.Key.
func ParseRefKey(key string) (Ref, bool) {
	src, id, ok := strings.Cut(key, ":")
	if !ok || id == "" {
		return Ref{}, false
	}
	switch Source(src) {
	case SourceMeta:
		return Ref{Source: SourceMeta, IDs: SourceIDs{Meta: id}}, true
	case SourceTripleWhale:
		return Ref{Source: SourceTripleWhale, IDs: SourceIDs{TripleWhale: id}}, true
	}
	return Ref{}, false
}

// TaggedAs keeps only the id of src, filling it from c.ID when missing.
func (c Campaign) TaggedAs(src Source) Campaign {
	switch src {
	case SourceMeta:
		id := c.SourceIDs.Meta
		if id == "" {
			id = c.ID
		}
		c.SourceIDs = SourceIDs{Meta: id}
	case SourceTripleWhale:
		id := c.SourceIDs.TripleWhale
		if id == "" {
			id = c.ID
		}
		c.SourceIDs = SourceIDs{TripleWhale: id}
	}
	return c
}
