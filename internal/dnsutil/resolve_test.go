package dnsutil

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

type fakeExchanger struct {
	answers map[string][]net.IP // keyed by question name
	err     error
}

func (f *fakeExchanger) Exchange(m *dns.Msg, server string) (*dns.Msg, time.Duration, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	name := m.Question[0].Name
	ips, ok := f.answers[name]
	reply := new(dns.Msg)
	reply.SetReply(m)
	if !ok {
		reply.Rcode = dns.RcodeNameError
		return reply, 0, nil
	}
	for _, ip := range ips {
		reply.Answer = append(reply.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET},
			A:   ip,
		})
	}

	return reply, 0, nil
}

func TestResolveALiteral(t *testing.T) {
	r := &Resolver{exchanger: &fakeExchanger{}, servers: []string{"127.0.0.1:53"}}
	ips, err := r.ResolveA(context.Background(), "1.2.3.4")
	if err != nil {
		t.Fatal(err)
	}
	if len(ips) != 1 || !ips[0].Equal(net.ParseIP("1.2.3.4")) {
		t.Error("expected literal passthrough, got", ips)
	}
}

func TestResolveAHostname(t *testing.T) {
	want := net.ParseIP("104.16.1.1")
	r := &Resolver{
		exchanger: &fakeExchanger{answers: map[string][]net.IP{"example.com.": {want}}},
		servers:   []string{"127.0.0.1:53"},
	}
	ips, err := r.ResolveA(context.Background(), "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(ips) != 1 || !ips[0].Equal(want) {
		t.Error("expected", want, "got", ips)
	}
}

func TestResolveANXDomain(t *testing.T) {
	r := &Resolver{
		exchanger: &fakeExchanger{answers: map[string][]net.IP{}},
		servers:   []string{"127.0.0.1:53"},
	}
	_, err := r.ResolveA(context.Background(), "nowhere.invalid")
	if err == nil {
		t.Error("expected an error for an nxdomain response")
	}
}

func TestResolveAEmptyHost(t *testing.T) {
	r := &Resolver{exchanger: &fakeExchanger{}, servers: []string{"127.0.0.1:53"}}
	_, err := r.ResolveA(context.Background(), "")
	if err == nil {
		t.Error("expected error for empty host")
	}
}

func TestResolveANoServers(t *testing.T) {
	r := &Resolver{exchanger: &fakeExchanger{}}
	_, err := r.ResolveA(context.Background(), "example.com")
	if err == nil {
		t.Error("expected error when no servers are configured")
	}
}

func TestNewResolverFallback(t *testing.T) {
	r := NewResolver("/no/such/file")
	if len(r.servers) == 0 {
		t.Error("expected fallback servers to be populated")
	}
}
