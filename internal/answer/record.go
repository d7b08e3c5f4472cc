package answer

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// ErrShortRdata is returned when a record payload is too short for its type.
var ErrShortRdata = errors.New("short rdata")

// Record wraps one raw rdata payload together with its lazily parsed
// presentation value. The parse result is memoized on first access.
type Record struct {
	rtype uint16
	data  []byte

	value  string
	parsed bool
}

func newRecord(rtype uint16, data []byte) *Record {
	return &Record{rtype: rtype, data: data}
}

// Type returns the numeric record type.
func (r *Record) Type() uint16 { return r.rtype }

// Data returns the raw wire-format rdata payload.
func (r *Record) Data() []byte { return r.data }

// IP returns the address for A and AAAA records, or nil for other types.
func (r *Record) IP() net.IP {
	switch r.rtype {
	case dns.TypeA:
		if len(r.data) == net.IPv4len {
			return net.IP(r.data)
		}
	case dns.TypeAAAA:
		if len(r.data) == net.IPv6len {
			return net.IP(r.data)
		}
	}
	return nil
}

// Target returns the domain name carried in the rdata for name-valued
// types (NS, CNAME, PTR, DNAME), or "" for other types.
func (r *Record) Target() string {
	switch r.rtype {
	case dns.TypeNS, dns.TypeCNAME, dns.TypePTR, dns.TypeDNAME:
		if name, err := parseDomainName(r.data); err == nil {
			return name
		}
	}
	return ""
}

// String returns the presentation-format value for the record.
// Parsing happens on first call and is cached thereafter. Types without
// a dedicated parser, and payloads that fail to parse, render in the
// RFC 3597 generic form.
func (r *Record) String() string {
	if r.parsed {
		return r.value
	}

	r.value = parseRdata(r.rtype, r.data)
	r.parsed = true
	return r.value
}

// parseFunc converts a wire-format rdata payload into presentation format.
type parseFunc func(data []byte) (string, error)

// parsers maps record types to their rdata parser. Types absent from the
// table fall back to generic rendering.
var parsers = map[uint16]parseFunc{
	dns.TypeA:     parseA,
	dns.TypeAAAA:  parseAAAA,
	dns.TypeNS:    parseDomainName,
	dns.TypeCNAME: parseDomainName,
	dns.TypePTR:   parseDomainName,
	dns.TypeDNAME: parseDomainName,
	dns.TypeMX:    parseMX,
	dns.TypeSRV:   parseSRV,
	dns.TypeTXT:   parseTXT,
	dns.TypeSOA:   parseSOA,
}

func parseRdata(rtype uint16, data []byte) string {
	if parse, ok := parsers[rtype]; ok {
		if value, err := parse(data); err == nil {
			return value
		}
	}
	return genericRdata(data)
}

// genericRdata renders a payload in the RFC 3597 unknown-rdata form.
// Empty payloads render as `\# 0` with no hex part.
func genericRdata(data []byte) string {
	if len(data) == 0 {
		return `\# 0`
	}
	return `\# ` + strconv.Itoa(len(data)) + " " + strings.ToUpper(hex.EncodeToString(data))
}

func parseA(data []byte) (string, error) {
	if len(data) != net.IPv4len {
		return "", ErrShortRdata
	}
	return net.IP(data).String(), nil
}

func parseAAAA(data []byte) (string, error) {
	if len(data) != net.IPv6len {
		return "", ErrShortRdata
	}
	return net.IP(data).String(), nil
}

func parseDomainName(data []byte) (string, error) {
	name, _, err := dns.UnpackDomainName(data, 0)
	if err != nil {
		return "", err
	}
	return name, nil
}

func parseMX(data []byte) (string, error) {
	if len(data) < 3 {
		return "", ErrShortRdata
	}
	pref := binary.BigEndian.Uint16(data)
	host, _, err := dns.UnpackDomainName(data, 2)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %s", pref, host), nil
}

func parseSRV(data []byte) (string, error) {
	if len(data) < 7 {
		return "", ErrShortRdata
	}
	prio := binary.BigEndian.Uint16(data)
	weight := binary.BigEndian.Uint16(data[2:])
	port := binary.BigEndian.Uint16(data[4:])
	target, _, err := dns.UnpackDomainName(data, 6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d %d %s", prio, weight, port, target), nil
}

// parseTXT renders the sequence of character-strings, each quoted.
func parseTXT(data []byte) (string, error) {
	var parts []string
	for off := 0; off < len(data); {
		l := int(data[off])
		off++
		if off+l > len(data) {
			return "", ErrShortRdata
		}
		parts = append(parts, strconv.Quote(string(data[off:off+l])))
		off += l
	}
	if len(parts) == 0 {
		return "", ErrShortRdata
	}
	return strings.Join(parts, " "), nil
}

func parseSOA(data []byte) (string, error) {
	mname, off, err := dns.UnpackDomainName(data, 0)
	if err != nil {
		return "", err
	}
	rname, off, err := dns.UnpackDomainName(data, off)
	if err != nil {
		return "", err
	}
	if len(data)-off < 20 {
		return "", ErrShortRdata
	}
	fields := make([]uint32, 5)
	for i := range fields {
		fields[i] = binary.BigEndian.Uint32(data[off+i*4:])
	}
	return fmt.Sprintf("%s %s %d %d %d %d %d",
		mname, rname, fields[0], fields[1], fields[2], fields[3], fields[4]), nil
}
