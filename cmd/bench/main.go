package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/sirupsen/logrus"

	socket "github.com/loicdescotte/zio-http"
)

var (
	socketAddr    = "ws://127.0.0.1:3000"
	clients       = []int{32, 128, 512}
	payloadSizes  = []int{32, 128, 1024, 4098}
	benchDuration = time.Second * 5
)

func main() {
	logrus.SetLevel(logrus.WarnLevel)

	config := socket.Resolve(socket.Join(
		socket.SubProtocol("bench"),
		socket.HandshakeTimeout(time.Second),
	))

	server := &socket.Server{
		Config:       config,
		Handler:      socket.HandlerFunc(echo),
		WriteTimeout: time.Second,
	}

	go func() {
		if err := http.ListenAndServe("127.0.0.1:3000", server); err != nil {
			log.Fatal("Could not set up bench listener", err)
		}
	}()

	time.Sleep(time.Millisecond * 50) // give the http server time to bind

	BenchmarkLatency()
	BenchmarkThroughput()
}

func echo(s *socket.Session, header ws.Header, payload io.Reader) error {
	data, err := io.ReadAll(payload)
	if err != nil {
		return err
	}

	return s.WriteFrame(ws.NewFrame(header.OpCode, true, data))
}

func BenchmarkLatency() {
	for _, clientsCount := range clients {
		conns := dialConnections(clientsCount)

		for _, size := range payloadSizes {
			payload := make([]byte, size)
			var (
				latency, samples int64
				stopped          int64
				wg               sync.WaitGroup
			)
			for _, conn := range conns {
				wg.Add(1)
				go func(conn net.Conn) {
					for atomic.LoadInt64(&stopped) == 0 {
						start := time.Now()
						wsutil.WriteClientBinary(conn, payload)
						wsutil.ReadServerBinary(conn)
						atomic.AddInt64(&latency, int64(time.Since(start)))
						atomic.AddInt64(&samples, 1)
						time.Sleep(time.Millisecond * 5)
					}
					wg.Done()
				}(conn)
			}

			time.Sleep(benchDuration)
			atomic.StoreInt64(&stopped, 1)
			wg.Wait()

			final := float64(latency/int64(time.Microsecond)) / float64(samples) / 2
			fmt.Printf("clients=%d, payload=%db, latency=%.1fus\n", clientsCount, size, final)
		}

		for _, conn := range conns {
			conn.Close()
		}
	}
}

func BenchmarkThroughput() {
	for _, clientsCount := range clients {
		conns := dialConnections(clientsCount)

		for _, size := range payloadSizes {
			payload := make([]byte, size)
			var (
				count   int64
				stopped int64
				wg      sync.WaitGroup
			)
			for _, conn := range conns {
				wg.Add(1)
				go func(conn net.Conn) {
					for atomic.LoadInt64(&stopped) == 0 {
						wsutil.WriteClientBinary(conn, payload)
						data, err := wsutil.ReadServerBinary(conn)
						if err != nil {
							break
						}
						atomic.AddInt64(&count, int64(len(data)))
					}
					wg.Done()
				}(conn)
			}

			time.Sleep(benchDuration)
			final := atomic.LoadInt64(&count)
			atomic.StoreInt64(&stopped, 1)
			bps := float64(final) / (float64(benchDuration) / float64(time.Second)) * 8
			fmt.Printf("clients=%d, payload=%db, throughput=%.1fmbps\n", clientsCount, size, bps/1024/1024)
			wg.Wait()
		}

		for _, conn := range conns {
			conn.Close()
		}
	}
}

func dialConnections(n int) (conns []net.Conn) {
	dialer := ws.Dialer{Protocols: []string{"bench"}}

	for i := 0; i < n; i++ {
		conn, _, _, err := dialer.Dial(context.Background(), socketAddr)
		if err != nil {
			log.Fatal("Error provisioning connection", err)
		}

		conns = append(conns, conn)
	}

	return conns
}
