package socket

import (
	"io"
	"time"

	"github.com/gobwas/ws"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func (e *EndToEndSuite) TestEchoesTextFrames() {
	_, url := e.startServer(Default, HandlerFunc(echoHandler))
	cnx := e.connectSocket(url)

	e.write(cnx, `{"hello":"world!"}`)
	e.expectRead(cnx, `{"hello":"world!"}`)
}

func (e *EndToEndSuite) TestPathPrefixAlwaysMatches() {
	// The resolved config fixes Path to "", so any request path passes the
	// prefix check.
	_, url := e.startServer(Default, HandlerFunc(echoHandler))
	cnx := e.connectSocket(url + "/some/deep/path")

	e.write(cnx, "hello")
	e.expectRead(cnx, "hello")
}

func (e *EndToEndSuite) TestNegotiatesOfferedSubProtocol() {
	_, url := e.startServer(Join(SubProtocol("chat"), SubProtocol("v2")), HandlerFunc(echoHandler))

	cnx := e.connectSocket(url, "v2")
	require.Equal(e.T(), "v2", cnx.Subprotocol())
}

func (e *EndToEndSuite) TestNoAgreementOnUnknownSubProtocol() {
	_, url := e.startServer(SubProtocol("chat"), HandlerFunc(echoHandler))

	cnx := e.connectSocket(url, "other")
	require.Equal(e.T(), "", cnx.Subprotocol())
}

func (e *EndToEndSuite) TestAnswersPings() {
	_, url := e.startServer(Default, HandlerFunc(echoHandler))
	cnx := e.connectSocket(url)

	var pong string
	cnx.SetPongHandler(func(data string) error {
		pong = data
		return nil
	})

	e.expectNoerr(cnx.WriteControl(websocket.PingMessage, []byte("marco"), time.Now().Add(time.Second)))
	e.write(cnx, "after")
	e.expectRead(cnx, "after")

	require.Equal(e.T(), "marco", pong)
}

func (e *EndToEndSuite) TestDropsPongsByDefault() {
	_, url := e.startServer(Default, HandlerFunc(echoHandler))
	cnx := e.connectSocket(url)

	// The pong never reaches the echo handler; only the text comes back.
	e.expectNoerr(cnx.WriteControl(websocket.PongMessage, []byte("ignored"), time.Now().Add(time.Second)))
	e.write(cnx, "after")
	e.expectRead(cnx, "after")
}

func (e *EndToEndSuite) TestForwardsPongFrames() {
	handler := HandlerFunc(func(s *Session, header ws.Header, payload io.Reader) error {
		data, err := io.ReadAll(payload)
		if err != nil {
			return err
		}
		if header.OpCode == ws.OpPong {
			data = append([]byte("pong:"), data...)
		}
		return s.WriteFrame(ws.NewFrame(ws.OpText, true, data))
	})

	_, url := e.startServer(ForwardPongFrames, handler)
	cnx := e.connectSocket(url)

	e.expectNoerr(cnx.WriteControl(websocket.PongMessage, []byte("hi"), time.Now().Add(time.Second)))
	e.expectRead(cnx, "pong:hi")
}

func (e *EndToEndSuite) TestEchoesPeerCloseStatus() {
	_, url := e.startServer(Default, HandlerFunc(echoHandler))
	cnx := e.connectSocket(url)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	e.expectNoerr(cnx.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
	e.expectClose(cnx, websocket.CloseNormalClosure, "done")
}

func (e *EndToEndSuite) TestAnswersCloseWithConfiguredFrame() {
	_, url := e.startServer(CloseFrame(4001, "bye"), HandlerFunc(echoHandler))
	cnx := e.connectSocket(url)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	e.expectNoerr(cnx.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
	e.expectClose(cnx, 4001, "bye")
}

func (e *EndToEndSuite) TestForwardsCloseFrames() {
	handler := HandlerFunc(func(s *Session, header ws.Header, payload io.Reader) error {
		if header.OpCode != ws.OpClose {
			return nil
		}
		// Replying is our job now.
		return s.WriteClose(CloseStatus{Code: 4009, Reason: "handler close"})
	})

	_, url := e.startServer(ForwardCloseFrames, handler)
	cnx := e.connectSocket(url)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	e.expectNoerr(cnx.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
	e.expectClose(cnx, 4009, "handler close")
}

func (e *EndToEndSuite) TestServerInitiatedClose() {
	handler := HandlerFunc(func(s *Session, header ws.Header, payload io.Reader) error {
		data, err := io.ReadAll(payload)
		if err != nil {
			return err
		}
		if string(data) == "close me" {
			return s.CloseNormally()
		}
		return nil
	})

	d := Join(CloseFrame(4002, "as requested"), ForceCloseTimeout(time.Second))
	_, url := e.startServer(d, handler)
	cnx := e.connectSocket(url)

	e.write(cnx, "close me")
	e.expectClose(cnx, 4002, "as requested")
}

func (e *EndToEndSuite) TestShutdownBroadcastsCloseFrame() {
	server, url := e.startServer(Default, HandlerFunc(echoHandler))

	first := e.connectSocket(url)
	second := e.connectSocket(url)
	third := e.connectSocket(url)
	e.waitForSessions(server, 3)

	server.Shutdown()

	e.expectClose(first, 1001, "going away")
	e.expectClose(second, 1001, "going away")
	e.expectClose(third, 1001, "going away")
}

func (e *EndToEndSuite) TestShutdownDropsUnresponsivePeerAfterForceCloseTimeout() {
	server, url := e.startServer(ForceCloseTimeout(300*time.Millisecond), HandlerFunc(echoHandler))

	// This client never reads, so it never replies to the close frame, and
	// it keeps writing so the session's read loop always has traffic. The
	// force-close deadline must bound the wait regardless.
	cnx := e.connectSocket(url)
	e.waitForSessions(server, 1)

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if cnx.WriteMessage(websocket.TextMessage, []byte("still here")) != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	start := time.Now()
	server.Shutdown()
	elapsed := time.Since(start)
	close(stop)
	<-writerDone

	require.GreaterOrEqual(e.T(), elapsed, 200*time.Millisecond)
	require.Less(e.T(), elapsed, 3*time.Second)
}

func (e *EndToEndSuite) waitForSessions(server *Server, n int) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		server.sessionsMu.Lock()
		count := len(server.sessions)
		server.sessionsMu.Unlock()
		if count == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	e.T().Fatalf("expected %d live sessions", n)
}
