package queue

import (
	"bytes"
	"context"
	"log"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentBroker accepts TCP connections and never answers the AMQP
// handshake.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		var held []net.Conn
		defer func() {
			for _, c := range held {
				_ = c.Close()
			}
			close(done)
		}()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			held = append(held, c)
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev, flags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(prev)
		log.SetFlags(flags)
	})
	return &buf
}

func TestPublishGivesUpOnStalledBroker(t *testing.T) {
	logs := captureLog(t)
	p := NewPublisher(silentBroker(t))
	p.DialTimeout = 200 * time.Millisecond

	start := time.Now()
	err := p.PublishBookingEvent(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq: dial")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, logs.String())
}

func TestPublishHonoursCallerContext(t *testing.T) {
	p := NewPublisher(silentBroker(t))
	p.DialTimeout = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.PublishBookingEvent(ctx, sampleEvent())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPublishUnreachableBroker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	logs := captureLog(t)
	err = NewPublisher("amqp://guest:guest@"+addr+"/").PublishBookingEvent(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq: dial")
	assert.Empty(t, logs.String())
}
