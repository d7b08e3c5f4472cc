package client_test

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/suite"

	"github.com/lc/adns/internal/answer"
	"github.com/lc/adns/internal/config"
	"github.com/lc/adns/internal/mocks"
	"github.com/lc/adns/internal/service"
	"github.com/lc/adns/pkg/api"
	"github.com/lc/adns/pkg/client"
)

type staticProvider struct {
	cfg *config.Config
}

func (p *staticProvider) Load() (*config.Config, error) { return p.cfg, nil }

// ClientTestSuite exercises the client against a real API server listening
// on a Unix socket in a temp directory.
type ClientTestSuite struct {
	suite.Suite
	engines []*mocks.Engine
	srv     *api.Server
	cli     *client.Client
}

func (s *ClientTestSuite) SetupTest() {
	sockPath := filepath.Join(s.T().TempDir(), "adnsd.socket")

	cfg := config.Default()
	cfg.Socket.Path = sockPath

	s.engines = nil
	svc, err := service.New(&staticProvider{cfg: cfg}, func(config.ResolverConfig) (service.Engine, error) {
		eng := mocks.NewEngine()
		s.engines = append(s.engines, eng)
		return eng, nil
	})
	s.Require().NoError(err)

	s.srv = api.New(svc)
	go func() {
		_ = s.srv.ListenAndServe(sockPath)
	}()
	s.T().Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.srv.Shutdown(ctx)
	})

	s.waitForSocket(sockPath)
	s.cli = client.New(sockPath)
}

func (s *ClientTestSuite) waitForSocket(path string) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("unix", path)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.FailNow("api server never came up")
}

func (s *ClientTestSuite) engine() *mocks.Engine {
	return s.engines[len(s.engines)-1]
}

func (s *ClientTestSuite) TestResolve() {
	s.engine().SyncRaw = &answer.Raw{
		Question: answer.Question{Name: "example.com", Type: dns.TypeA, Class: dns.ClassINET},
		Rcode:    dns.RcodeSuccess,
		Secure:   true,
		Rdata:    [][]byte{{93, 184, 216, 34}, {93, 184, 216, 35}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := s.cli.Resolve(ctx, "example.com", "", "")
	s.Require().NoError(err)
	s.Equal("example.com", resp.Name)
	s.Equal("NOERROR", resp.Status)
	s.Equal("IN", resp.Class)
	s.Equal("A", resp.Type)
	s.True(resp.Secure)
	s.Require().Len(resp.Records, 2)
	s.Equal("93.184.216.34", resp.Records[0].Value)
	s.Contains(resp.Text, "Secure")
}

func (s *ClientTestSuite) TestResolveFailure() {
	s.engine().SyncErr = errors.New("upstream unreachable")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := s.cli.Resolve(ctx, "example.com", "", "")
	s.ErrorContains(err, "daemon returned")
}

func (s *ClientTestSuite) TestStatusAndPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	st, err := s.cli.Status(ctx)
	s.Require().NoError(err)
	s.Zero(st.Pending)
	s.NotEmpty(st.Generation)

	s.Require().NoError(s.cli.Purge(ctx))

	after, err := s.cli.Status(ctx)
	s.Require().NoError(err)
	s.NotEqual(st.Generation, after.Generation)
	s.Len(s.engines, 2)
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
