// Package remote scans and deletes over SFTP. A Session wraps one SSH
// connection and hands out a probe.Probe and an ops.Deleter bound to it.
package remote

import (
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/cespare/xxhash/v2"
	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

const defaultTimeout = 15 * time.Second

// Config configures the SSH connection.
type Config struct {
	Target    string
	Port      int
	BatchMode bool
	Timeout   time.Duration
}

// sftpClient is the subset of *sftp.Client the probe and deleter use.
type sftpClient interface {
	ReadDir(string) ([]os.FileInfo, error)
	Stat(string) (os.FileInfo, error)
	Lstat(string) (os.FileInfo, error)
	RealPath(string) (string, error)
	Remove(string) error
	RemoveDirectory(string) error
}

// statVFSClient is implemented by servers with the statvfs extension.
type statVFSClient interface {
	StatVFS(string) (*sftp.StatVFS, error)
}

// Session is an open SFTP connection to one host.
type Session struct {
	client sftpClient
	closer io.Closer
	host   string
	log    logrus.FieldLogger
}

var dialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

var sshNewClientConn = ssh.NewClientConn

// Dial connects to cfg.Target and starts the SFTP subsystem.
func Dial(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Session, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, errors.NewWithDetails("ssh port must be between 1 and 65535", "port", cfg.Port)
	}
	user, host, err := ParseTarget(cfg.Target)
	if err != nil {
		return nil, err
	}

	keys, err := newHostKeys(host, cfg.Port, cfg.BatchMode, log)
	if err != nil {
		return nil, err
	}
	hostKeyCallback, err := keys.callback()
	if err != nil {
		return nil, err
	}
	auth, err := authMethods(user, host, cfg.BatchMode)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	sshClient, err := connectSSH(dialCtx, addr, &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	})
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "SSH connection failed", "addr", addr)
	}
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, errors.WrapIf(err, "cannot start SFTP subsystem")
	}

	log.WithFields(logrus.Fields{"host": host, "port": cfg.Port, "user": user}).Info("sftp session opened")
	return &Session{
		client: client,
		closer: closers{client, sshClient},
		host:   host,
		log:    log,
	}, nil
}

func connectSSH(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	conn, err := dialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// Closing the connection is the only way to interrupt the handshake.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	c, chans, reqs, err := sshNewClientConn(conn, addr, config)
	close(done)
	if err != nil {
		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// Host returns the remote host name.
func (s *Session) Host() string { return s.host }

// Probe returns a probe reading through this session.
func (s *Session) Probe() *Probe {
	return &Probe{client: s.client, dev: xxhash.Sum64String(s.host)}
}

// Deleter returns a deleter constrained to root.
func (s *Session) Deleter(root string) *Deleter {
	return &Deleter{client: s.client, root: cleanPath(root), log: s.log}
}

// Close ends the SFTP subsystem and the SSH connection.
func (s *Session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// closers closes each in order and keeps the first error.
type closers []io.Closer

func (cs closers) Close() error {
	var first error
	for _, c := range cs {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
