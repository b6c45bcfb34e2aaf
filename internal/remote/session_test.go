package remote

import (
	"context"
	"net"
	"testing"
	"time"

	"emperror.dev/errors"
	"golang.org/x/crypto/ssh"
)

func TestConnectSSH_CancelInterruptsHandshake(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { _ = server.Close() })

	restoreDial, restoreConn := dialContext, sshNewClientConn
	dialContext = func(context.Context, string, string) (net.Conn, error) { return client, nil }
	// Blocks reading until the connection is closed, like a silent server.
	sshNewClientConn = func(c net.Conn, _ string, _ *ssh.ClientConfig) (ssh.Conn, <-chan ssh.NewChannel, <-chan *ssh.Request, error) {
		buf := make([]byte, 1)
		_, err := c.Read(buf)
		return nil, nil, nil, err
	}
	t.Cleanup(func() { dialContext, sshNewClientConn = restoreDial, restoreConn })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := connectSSH(ctx, "example.com:22", &ssh.ClientConfig{})
		errc <- err
	}()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connectSSH did not return after cancel")
	}
}

func TestDial_RejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := Dial(ctx, Config{Target: "alice@example.com", Port: 0}, quietLogger()); err == nil {
		t.Error("port 0 accepted")
	}
	if _, err := Dial(ctx, Config{Target: "example.com", Port: 22}, quietLogger()); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("bad target: %v", err)
	}
}

func TestSession_HandsOutBoundProbeAndDeleter(t *testing.T) {
	fs := sampleFS()
	s := &Session{client: fs, host: "example.com", log: quietLogger()}
	p := s.Probe()
	if p.dev == 0 {
		t.Error("probe should carry a synthesized device id")
	}
	if other := (&Session{client: fs, host: "other.com"}).Probe(); other.dev == p.dev {
		t.Error("different hosts should get different device ids")
	}
	d := s.Deleter("/srv/")
	if d.root != "/srv" {
		t.Errorf("deleter root = %q", d.root)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close without a connection: %v", err)
	}
}

type closeRecorder struct {
	name  string
	order *[]string
	err   error
}

func (c closeRecorder) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestClosers_ClosesAllKeepsFirstError(t *testing.T) {
	var order []string
	first := errors.New("first")
	cs := closers{
		closeRecorder{"sftp", &order, first},
		closeRecorder{"ssh", &order, errors.New("second")},
	}
	if err := cs.Close(); err != first {
		t.Errorf("Close = %v", err)
	}
	if len(order) != 2 || order[0] != "sftp" || order[1] != "ssh" {
		t.Errorf("order = %v", order)
	}
}
