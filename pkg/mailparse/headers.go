package mailparse

import (
	"strings"

	"github.com/emersion/go-message"
)

// HeaderView is a read-only, case-insensitive view over the headers of a
// parsed message. It exists so the forensics layer can inspect repeatable
// headers (multiple Received lines) without caring about MIME structure.
// A nil *HeaderView means the input had no parseable headers, which
// disables header forensics for that analysis.
type HeaderView struct {
	order  []string            // canonical keys in first-seen order
	values map[string][]string // lower-cased key -> values in message order
}

// newHeaderView flattens a go-message header into a HeaderView.
func newHeaderView(h message.Header) *HeaderView {
	view := &HeaderView{values: make(map[string][]string)}

	// go-message iterates fields newest-first; walk them and prepend so the
	// stored order matches the wire order of the message.
	fields := h.Fields()
	type kv struct{ key, value string }
	var collected []kv
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			// Undecodable encoded-word; keep the raw value rather than drop
			// the header, missing headers are themselves a signal.
			value = fields.Value()
		}
		collected = append(collected, kv{fields.Key(), value})
	}

	for i := len(collected) - 1; i >= 0; i-- {
		f := collected[i]
		key := strings.ToLower(f.key)
		if _, seen := view.values[key]; !seen {
			view.order = append(view.order, f.key)
		}
		view.values[key] = append(view.values[key], f.value)
	}

	return view
}

// Get returns the first value of the named header, or "" when absent.
// Lookup is case-insensitive.
func (v *HeaderView) Get(key string) string {
	if v == nil {
		return ""
	}
	if vals := v.values[strings.ToLower(key)]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Values returns every value of the named header in message order.
// Returns nil when the header is absent.
func (v *HeaderView) Values(key string) []string {
	if v == nil {
		return nil
	}
	return v.values[strings.ToLower(key)]
}

// Has reports whether the named header is present with a non-empty value.
func (v *HeaderView) Has(key string) bool {
	return strings.TrimSpace(v.Get(key)) != ""
}

// Len returns the number of distinct header keys.
func (v *HeaderView) Len() int {
	if v == nil {
		return 0
	}
	return len(v.order)
}
