package main

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/gobwas/ws"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	socket "github.com/loicdescotte/zio-http"
)

var version = "master" // overwritten by goreleaser

var (
	host    = kingpin.Flag("listen", "Host and port to listen on.").Default("127.0.0.1:3000").String()
	network = kingpin.Flag("network", "Network to listen on, should be either 'tcp' or 'tcp6' for IPv6 support").Default("tcp").String()
	pprofServer = kingpin.Flag("pprof-address", "Address to host the pprof server on. This should not be exposed publicly. "+
		"If not provided, the pprof server will not be started").String()

	certFile = kingpin.Flag("tls-cert", "A PEM-encoded certificate file. Providing this enables TLS.").String()
	keyFile  = kingpin.Flag("tls-key", "A PEM encoded private key file. Providing this enables TLS.").String()
	caFile   = kingpin.Flag("tls-ca", "A PEM-encoded CA's cert. Providing this enabled client cert auth").String()

	writeTimeout = kingpin.Flag("write-timeout", "Write timeout for individual frames").Default("5s").Duration()

	subProtocols      = kingpin.Flag("subprotocol", "Sub-protocol to offer during the handshake. Repeatable; offered in order.").Strings()
	handshakeTimeout  = kingpin.Flag("handshake-timeout", "Maximum time for the opening handshake. 0 leaves it unbounded.").Duration()
	forceCloseTimeout = kingpin.Flag("force-close-timeout", "How long to wait for the client's close reply before dropping the connection. 0 drops immediately.").Duration()
	forwardClose      = kingpin.Flag("forward-close-frames", "Hand close frames to the handler instead of answering them.").Bool()
	forwardPong       = kingpin.Flag("forward-pong-frames", "Hand pong frames to the handler instead of dropping them.").Bool()
	closeCode         = kingpin.Flag("close-code", "Close code to send on normal closure.").Int()
	closeReason       = kingpin.Flag("close-reason", "Close reason to send on normal closure.").String()
)

func main() {
	kingpin.Version(version)
	kingpin.Parse()

	var (
		listener net.Listener
		err      error
	)

	if *certFile != "" {
		listener, err = tls.Listen(*network, *host, createTLSConfig())
	} else {
		listener, err = net.Listen(*network, *host)
	}

	if err != nil {
		logrus.WithError(err).Fatal("Error creating network listener")
	}

	go startPprof()

	config := socket.Resolve(buildDescriptor())
	server := &socket.Server{
		Config:       config,
		Handler:      socket.HandlerFunc(echo),
		WriteTimeout: *writeTimeout,
	}

	go handleSignals(server)

	logrus.WithField("subprotocols", config.SubProtocols).Infof("socketd listening on %s", *host)
	err = (&http.Server{Handler: server}).Serve(listener)
	if err != nil {
		logrus.WithError(err).Fatal("Error listening for http connections")
	}
}

// buildDescriptor turns the flags into one descriptor chain. Flags left at
// their zero value contribute no leaf, so the resolved config keeps its
// defaults for them.
func buildDescriptor() socket.Descriptor {
	ds := []socket.Descriptor{socket.Default}

	for _, p := range *subProtocols {
		ds = append(ds, socket.SubProtocol(p))
	}
	if *handshakeTimeout != 0 {
		ds = append(ds, socket.HandshakeTimeout(*handshakeTimeout))
	}
	if *forceCloseTimeout != 0 {
		ds = append(ds, socket.ForceCloseTimeout(*forceCloseTimeout))
	}
	if *forwardClose {
		ds = append(ds, socket.ForwardCloseFrames)
	}
	if *forwardPong {
		ds = append(ds, socket.ForwardPongFrames)
	}
	if *closeCode != 0 {
		ds = append(ds, socket.CloseFrame(*closeCode, *closeReason))
	} else if *closeReason != "" {
		// A reason without a code means a normal closure with that reason.
		ds = append(ds, socket.CloseFrameStatus(socket.StatusNormalClosure.WithReason(*closeReason)))
	}

	return socket.Join(ds...)
}

// echo writes every forwarded frame back with the same opcode.
func echo(s *socket.Session, header ws.Header, payload io.Reader) error {
	data, err := io.ReadAll(payload)
	if err != nil {
		return err
	}

	return s.WriteFrame(ws.NewFrame(header.OpCode, true, data))
}

func handleSignals(server *socket.Server) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	logrus.Info("signal received, closing sessions")
	server.Shutdown()
	os.Exit(0)
}

func createTLSConfig() *tls.Config {
	cert, err := tls.LoadX509KeyPair(*certFile, *keyFile)
	if err != nil {
		logrus.WithError(err).Fatal("Error loading cert")
	}

	var certPool *x509.CertPool
	if *caFile != "" {
		caCert, err := os.ReadFile(*caFile)
		if err != nil {
			logrus.WithError(err).Fatal("Error reading CA cert")
		}
		certPool = x509.NewCertPool()
		certPool.AppendCertsFromPEM(caCert)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      certPool,
	}
}

func startPprof() {
	if *pprofServer == "" {
		return
	}

	if err := http.ListenAndServe(*pprofServer, nil); err != nil {
		logrus.WithError(err).Warn("Error starting pprof server")
	}
}
