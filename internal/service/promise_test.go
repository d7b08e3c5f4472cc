package service_test

import (
	"context"
	"time"

	"github.com/lc/adns/internal/service"
)

func (s *ServiceTestSuite) TestPromiseAwaitResolvedAnswer() {
	p, err := s.svc.SubmitPromise("example.com", "", "")
	s.Require().NoError(err)
	s.Equal(1, s.svc.Pending())

	s.True(s.engine().Complete(p.Handle(), secureARaw("example.com", []byte{93, 184, 216, 34}), nil))

	n, err := p.Await(context.Background())
	s.Require().NoError(err)
	s.Equal("NOERROR", n.Status)

	// single resolution: a later Await observes the same outcome
	again, err := p.Await(context.Background())
	s.NoError(err)
	s.Same(n, again)
}

func (s *ServiceTestSuite) TestPromiseAwaitContextDoneDoesNotConsumeOutcome() {
	p, err := s.svc.SubmitPromise("example.com", "", "")
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Await(ctx)
	s.ErrorIs(err, context.Canceled)

	s.True(s.engine().Complete(p.Handle(), secureARaw("example.com", []byte{192, 0, 2, 1}), nil))

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	n, err := p.Await(ctx2)
	s.NoError(err)
	s.NotNil(n)
}

func (s *ServiceTestSuite) TestPromiseCanceled() {
	p, err := s.svc.SubmitPromise("example.com", "", "")
	s.Require().NoError(err)

	s.True(s.svc.Cancel(p.Handle()))

	n, err := p.Await(context.Background())
	s.Nil(n)
	s.ErrorIs(err, service.ErrCanceled)
}

func (s *ServiceTestSuite) TestPromiseSubmissionFailureYieldsNoPromise() {
	p, err := s.svc.SubmitPromise("example.com", "NOSUCHTYPE", "")
	s.Nil(p)
	s.ErrorIs(err, service.ErrUnknownType)
}
