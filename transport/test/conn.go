package test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"osc-relay/transport"

	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// DatagramTestSuite checks the behavior every [transport.Network] shares.
// Embedders set Network and ListenAddr before calling SetupTest.
type DatagramTestSuite struct {
	suite.Suite

	Network    transport.Network
	ListenAddr string

	Rx transport.Receiver
	Tx transport.Sender

	done  chan struct{}
	timer *time.Timer
}

func (s *DatagramTestSuite) SetupTest() {
	s.done = make(chan struct{})
	s.timer = time.AfterFunc(2*time.Second, func() {
		select {
		case <-s.done:
		default:
			s.FailNow("timeout exceeded")
		}
	})

	ctx := context.Background()

	rx, err := s.Network.Listen(ctx, s.ListenAddr)
	s.Require().NoError(err)
	s.Rx = rx

	tx, err := s.Network.Dial(ctx, rx.LocalAddr().String())
	s.Require().NoError(err)
	s.Tx = tx
}

func (s *DatagramTestSuite) TearDownTest() {
	defer goleak.VerifyNone(s.T())
	s.NoError(s.Tx.Close())
	s.NoError(s.Rx.Close())
	close(s.done)
	s.timer.Stop()
}

func (s *DatagramTestSuite) TestSendReceive() {
	data := []byte("Hello, World!")

	s.Require().NoError(s.Tx.Send(context.Background(), data))

	buf := make([]byte, 64)
	n, err := s.Rx.Receive(context.Background(), buf)
	s.Require().NoError(err)
	s.Equal(data, buf[:n])
}

func (s *DatagramTestSuite) TestDatagramBoundaries() {
	ctx := context.Background()

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for idx := range 3 {
			s.NoError(s.Tx.Send(ctx, []byte(fmt.Sprintf("datagram-%d", idx))))
		}
	}()

	// Each Receive returns exactly one datagram, never a concatenation.
	buf := make([]byte, 64)
	for range 3 {
		n, err := s.Rx.Receive(ctx, buf)
		s.Require().NoError(err)
		s.Len(buf[:n], len("datagram-0"))
	}
}

func (s *DatagramTestSuite) TestTruncate() {
	s.Require().NoError(s.Tx.Send(context.Background(), []byte("0123456789")))

	buf := make([]byte, 4)
	n, err := s.Rx.Receive(context.Background(), buf)
	s.Require().NoError(err)
	s.Equal(4, n)
	s.Equal([]byte("0123"), buf)
}

func (s *DatagramTestSuite) TestReceiveCancels() {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	n, err := s.Rx.Receive(ctx, make([]byte, 8))
	s.ErrorIs(err, context.Canceled)
	s.Zero(n)

	// The endpoint is still usable afterwards.
	s.Require().NoError(s.Tx.Send(context.Background(), []byte("hey")))
	n, err = s.Rx.Receive(context.Background(), make([]byte, 8))
	s.Require().NoError(err)
	s.Equal(3, n)
}

func (s *DatagramTestSuite) TestReceiveBeforeClose() {
	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Rx.Receive(context.Background(), make([]byte, 8))
		s.ErrorIs(err, transport.ErrConnClosed)
	}()

	time.Sleep(50 * time.Millisecond)
	s.Require().NoError(s.Rx.Close())
}

func (s *DatagramTestSuite) TestSendAfterClose() {
	s.Require().NoError(s.Tx.Close())

	err := s.Tx.Send(context.Background(), []byte("hey"))
	s.ErrorIs(err, transport.ErrConnClosed)
}

func (s *DatagramTestSuite) TestAddr() {
	s.Equal(s.Rx.LocalAddr().String(), s.Tx.RemoteAddr().String())
	s.Equal(s.Rx.LocalAddr().Network(), s.Tx.RemoteAddr().Network())
}
