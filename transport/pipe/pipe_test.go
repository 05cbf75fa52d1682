package pipe

import (
	"context"
	"testing"

	"osc-relay/transport"
	"osc-relay/transport/test"

	"github.com/stretchr/testify/suite"
)

type PipeTestSuite struct {
	test.DatagramTestSuite
}

func TestPipeTestSuite(t *testing.T) {
	suite.Run(t, new(PipeTestSuite))
}

func (s *PipeTestSuite) SetupTest() {
	s.Network = NewPipeTransport(8)
	s.ListenAddr = "rx"
	s.DatagramTestSuite.SetupTest()
}

type PipeTransportTestSuite struct {
	suite.Suite

	transport *PipeTransport
}

func TestPipeTransportTestSuite(t *testing.T) {
	suite.Run(t, new(PipeTransportTestSuite))
}

func (s *PipeTransportTestSuite) SetupTest() {
	s.transport = NewPipeTransport(1)
}

func (s *PipeTransportTestSuite) TestListen() {
	lis, err := s.transport.Listen(context.Background(), "hey")
	s.Require().NoError(err)
	s.Require().NotNil(lis)

	got, ok := s.transport.endpoints["hey"]
	s.True(ok)
	s.Equal(lis, got)

	lis2, err := s.transport.Listen(context.Background(), "hey")
	s.ErrorIs(err, transport.ErrAddrAlreadyInUse)
	s.Nil(lis2)

	// The name is free again once closed.
	s.Require().NoError(lis.Close())
	_, ok = s.transport.endpoints["hey"]
	s.False(ok)

	lis, err = s.transport.Listen(context.Background(), "hey")
	s.Require().NoError(err)
	s.NoError(lis.Close())
}

func (s *PipeTransportTestSuite) TestInvalidAddr() {
	_, err := s.transport.Listen(context.Background(), "")
	s.ErrorIs(err, transport.ErrInvalidAddr)

	_, err = s.transport.Dial(context.Background(), "")
	s.ErrorIs(err, transport.ErrInvalidAddr)
}

func (s *PipeTransportTestSuite) TestSendUnreachable() {
	tx, err := s.transport.Dial(context.Background(), "nobody")
	s.Require().NoError(err)
	defer tx.Close()

	s.ErrorIs(tx.Send(context.Background(), []byte("hey")), transport.ErrNetUnreachable)
}

func (s *PipeTransportTestSuite) TestSendBlocksWhenFull() {
	rx, err := s.transport.Listen(context.Background(), "rx")
	s.Require().NoError(err)
	defer rx.Close()

	tx, err := s.transport.Dial(context.Background(), "rx")
	s.Require().NoError(err)
	defer tx.Close()

	s.Require().NoError(tx.Send(context.Background(), []byte("1")))

	sent := make(chan error)
	go func() {
		sent <- tx.Send(context.Background(), []byte("2"))
	}()

	buf := make([]byte, 1)
	n, err := rx.Receive(context.Background(), buf)
	s.Require().NoError(err)
	s.Equal("1", string(buf[:n]))

	s.Require().NoError(<-sent)

	n, err = rx.Receive(context.Background(), buf)
	s.Require().NoError(err)
	s.Equal("2", string(buf[:n]))
}

func (s *PipeTransportTestSuite) TestSendCopies() {
	rx, err := s.transport.Listen(context.Background(), "rx")
	s.Require().NoError(err)
	defer rx.Close()

	tx, err := s.transport.Dial(context.Background(), "rx")
	s.Require().NoError(err)
	defer tx.Close()

	b := []byte("abc")
	s.Require().NoError(tx.Send(context.Background(), b))
	b[0] = 'z'

	buf := make([]byte, 3)
	n, err := rx.Receive(context.Background(), buf)
	s.Require().NoError(err)
	s.Equal("abc", string(buf[:n]))
}
