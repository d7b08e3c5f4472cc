package answer

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/suite"
)

type RecordTestSuite struct {
	suite.Suite
}

func (s *RecordTestSuite) packName(name string) []byte {
	buf := make([]byte, 256)
	off, err := dns.PackDomainName(name, buf, 0, nil, false)
	s.Require().NoError(err)
	return buf[:off]
}

func (s *RecordTestSuite) TestParseByType() {
	mx := append([]byte{0, 10}, s.packName("mail.example.com.")...)

	srv := make([]byte, 6)
	binary.BigEndian.PutUint16(srv, 5)
	binary.BigEndian.PutUint16(srv[2:], 20)
	binary.BigEndian.PutUint16(srv[4:], 443)
	srv = append(srv, s.packName("svc.example.com.")...)

	soa := append(s.packName("ns1.example.com."), s.packName("hostmaster.example.com.")...)
	soaTail := make([]byte, 20)
	binary.BigEndian.PutUint32(soaTail, 2024010101)
	binary.BigEndian.PutUint32(soaTail[4:], 7200)
	binary.BigEndian.PutUint32(soaTail[8:], 3600)
	binary.BigEndian.PutUint32(soaTail[12:], 1209600)
	binary.BigEndian.PutUint32(soaTail[16:], 300)
	soa = append(soa, soaTail...)

	testCases := []struct {
		name     string
		rtype    uint16
		data     []byte
		expected string
	}{
		{
			name:     "A record",
			rtype:    dns.TypeA,
			data:     []byte{93, 184, 216, 34},
			expected: "93.184.216.34",
		},
		{
			name:     "AAAA record",
			rtype:    dns.TypeAAAA,
			data:     net.ParseIP("2606:2800:220:1:248:1893:25c8:1946").To16(),
			expected: "2606:2800:220:1:248:1893:25c8:1946",
		},
		{
			name:     "NS record",
			rtype:    dns.TypeNS,
			data:     s.packName("ns1.example.com."),
			expected: "ns1.example.com.",
		},
		{
			name:     "CNAME record",
			rtype:    dns.TypeCNAME,
			data:     s.packName("www.example.com."),
			expected: "www.example.com.",
		},
		{
			name:     "MX record",
			rtype:    dns.TypeMX,
			data:     mx,
			expected: "10 mail.example.com.",
		},
		{
			name:     "SRV record",
			rtype:    dns.TypeSRV,
			data:     srv,
			expected: "5 20 443 svc.example.com.",
		},
		{
			name:     "TXT record",
			rtype:    dns.TypeTXT,
			data:     []byte{5, 'h', 'e', 'l', 'l', 'o', 2, 'h', 'i'},
			expected: `"hello" "hi"`,
		},
		{
			name:     "SOA record",
			rtype:    dns.TypeSOA,
			data:     soa,
			expected: "ns1.example.com. hostmaster.example.com. 2024010101 7200 3600 1209600 300",
		},
		{
			name:     "type without a parser renders generically",
			rtype:    dns.TypeNULL,
			data:     []byte{0xde, 0xad, 0xbe, 0xef},
			expected: `\# 4 DEADBEEF`,
		},
		{
			name:     "truncated payload renders generically",
			rtype:    dns.TypeA,
			data:     []byte{1, 2},
			expected: `\# 2 0102`,
		},
		{
			name:     "empty payload renders without hex part",
			rtype:    dns.TypeNULL,
			data:     nil,
			expected: `\# 0`,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			rec := newRecord(tc.rtype, tc.data)
			s.Equal(tc.expected, rec.String())
			// memoized: a second render is identical
			s.Equal(tc.expected, rec.String())
		})
	}
}

func (s *RecordTestSuite) TestTypedAccessors() {
	a := newRecord(dns.TypeA, []byte{192, 0, 2, 1})
	s.Equal("192.0.2.1", a.IP().String())
	s.Empty(a.Target())

	ns := newRecord(dns.TypeNS, s.packName("ns1.example.com."))
	s.Nil(ns.IP())
	s.Equal("ns1.example.com.", ns.Target())

	txt := newRecord(dns.TypeTXT, []byte{2, 'o', 'k'})
	s.Nil(txt.IP())
	s.Empty(txt.Target())
}

func TestRecordSuite(t *testing.T) {
	suite.Run(t, new(RecordTestSuite))
}
