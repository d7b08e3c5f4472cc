// Package answer normalizes raw resolver results into self-describing,
// renderable values. It maps numeric rcode/class/type codes to their
// symbolic names, parses raw record payloads through per-type parsers,
// and discards records from answers that failed DNSSEC validation.
package answer

import (
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// Question identifies a single DNS query by name, type and class.
type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// Raw is the unprocessed result produced by a resolver engine.
// Rdata holds wire-format rdata payloads in answer order, uncompressed.
// Raw values are immutable inputs to normalization.
type Raw struct {
	Question

	Rcode  int
	Secure bool
	// BogusReason is non-empty when DNSSEC validation explicitly failed.
	BogusReason string
	Rdata       [][]byte
}

// Bogus reports whether DNSSEC validation explicitly failed for this answer.
func (r *Raw) Bogus() bool { return r.BogusReason != "" }

// Normalized is a post-processed answer ready for caller consumption.
// Records from bogus answers are discarded rather than exposed.
// Immutable after construction except for the memoized rendering cache.
type Normalized struct {
	Qname  string
	Status string
	Class  string
	Type   string

	Rcode       int
	Secure      bool
	BogusReason string
	Records     []*Record

	rendered   string
	renderedOK bool
}

// Normalize converts a raw answer into a Normalized one.
// A nil input propagates failure: it yields a nil output.
func Normalize(raw *Raw) *Normalized {
	if raw == nil {
		return nil
	}

	n := &Normalized{
		Qname:       raw.Name,
		Status:      StatusString(raw.Rcode),
		Class:       dns.Class(raw.Question.Class).String(),
		Type:        dns.Type(raw.Question.Type).String(),
		Rcode:       raw.Rcode,
		Secure:      raw.Secure,
		BogusReason: raw.BogusReason,
	}

	// Never let unvalidated bogus data reach the caller as if it were
	// a record.
	if raw.Bogus() {
		return n
	}

	for _, data := range raw.Rdata {
		n.Records = append(n.Records, newRecord(raw.Question.Type, data))
	}
	return n
}

// Bogus reports whether DNSSEC validation explicitly failed for this answer.
func (n *Normalized) Bogus() bool { return n.BogusReason != "" }

// String renders the answer as a header line followed by one line per
// surviving record:
//
//	Status: <status>[, Secure|, Bogus: <reason>]
//	<qname>\t<class>\t<type>\t<value>
//
// The rendering is computed once and cached; repeated calls return the
// identical string.
func (n *Normalized) String() string {
	if n.renderedOK {
		return n.rendered
	}

	var b strings.Builder
	b.WriteString("Status: ")
	b.WriteString(n.Status)
	switch {
	case n.Bogus():
		b.WriteString(", Bogus: ")
		b.WriteString(n.BogusReason)
	case n.Secure:
		b.WriteString(", Secure")
	}

	for _, rec := range n.Records {
		b.WriteByte('\n')
		b.WriteString(n.Qname)
		b.WriteByte('\t')
		b.WriteString(n.Class)
		b.WriteByte('\t')
		b.WriteString(n.Type)
		b.WriteByte('\t')
		b.WriteString(rec.String())
	}

	n.rendered = b.String()
	n.renderedOK = true
	return n.rendered
}

// StatusString maps a numeric rcode to its symbolic status name.
// Unrecognized codes render as "RCODE<n>" rather than failing.
func StatusString(rcode int) string {
	if s, ok := dns.RcodeToString[rcode]; ok {
		return s
	}
	return "RCODE" + strconv.Itoa(rcode)
}
