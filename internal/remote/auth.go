package remote

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// ErrInvalidTarget is returned for remote targets not of the form user@host.
const ErrInvalidTarget = errors.Sentinel("invalid remote target, expected user@host")

// ErrHostKey is returned when the server's host key is unknown or changed
// and was not accepted.
const ErrHostKey = errors.Sentinel("host key verification failed")

var privateKeyFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa", "id_dsa"}

// ParseTarget splits user@host.
func ParseTarget(target string) (user, host string, err error) {
	user, host, ok := strings.Cut(strings.TrimSpace(target), "@")
	if !ok || user == "" || host == "" || strings.ContainsAny(host, "/\\") {
		return "", "", errors.WithDetails(ErrInvalidTarget, "target", target)
	}
	return user, host, nil
}

// IsTarget reports whether arg looks like user@host rather than a local path.
func IsTarget(arg string) bool {
	if strings.ContainsAny(arg, "/\\") {
		return false
	}
	_, _, err := ParseTarget(arg)
	return err == nil
}

// prompter asks the user questions on the controlling terminal. It is a
// variable so tests can answer without a tty.
var prompter = func(question string, secret bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, question)
	if secret {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func confirm(question string) (bool, error) {
	answer, err := prompter(question, false)
	if err != nil {
		return false, errors.WrapIf(err, "cannot ask for host key trust")
	}
	a := strings.ToLower(answer)
	return a == "y" || a == "yes", nil
}

// hostKeys verifies server keys against ~/.ssh/known_hosts, trusting new
// hosts on first use after asking.
type hostKeys struct {
	file  string
	host  string
	port  int
	batch bool
	log   logrus.FieldLogger
}

func newHostKeys(host string, port int, batch bool, log logrus.FieldLogger) (*hostKeys, error) {
	file, err := knownHostsFile()
	if err != nil {
		return nil, err
	}
	return &hostKeys{file: file, host: host, port: port, batch: batch, log: log}, nil
}

func knownHostsFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapIf(err, "cannot locate home directory for known_hosts")
	}
	dir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.WrapIf(err, "cannot create ~/.ssh")
	}
	path := filepath.Join(dir, "known_hosts")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return "", errors.WrapIf(err, "cannot open known_hosts")
	}
	return path, f.Close()
}

func (h *hostKeys) callback() (ssh.HostKeyCallback, error) {
	verify, err := knownhosts.New(h.file)
	if err != nil {
		return nil, errors.WrapIf(err, "cannot load known_hosts")
	}
	return func(hostname string, addr net.Addr, key ssh.PublicKey) error {
		err := verify(hostname, addr, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return errors.WrapIf(err, "cannot verify host key")
		}
		if len(keyErr.Want) == 0 {
			return h.trustNew(key)
		}
		return h.replaceChanged(key, keyErr.Want)
	}, nil
}

func (h *hostKeys) trustNew(key ssh.PublicKey) error {
	addr := knownHostAddress(h.host, h.port)
	fp := ssh.FingerprintSHA256(key)
	if h.batch {
		return errors.WithDetails(ErrHostKey, "host", addr, "fingerprint", fp, "reason", "unknown host in batch mode")
	}
	ok, err := confirm(fmt.Sprintf(
		"The authenticity of host '%s' can't be established.\n%s key fingerprint is %s.\nTrust this host and continue connecting (yes/no)? ",
		addr, key.Type(), fp))
	if err != nil {
		return err
	}
	if !ok {
		return errors.WithDetails(ErrHostKey, "host", addr, "reason", "not trusted")
	}

	f, err := os.OpenFile(h.file, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.WrapIf(err, "cannot update known_hosts")
	}
	defer f.Close()
	if _, err := f.WriteString(knownhosts.Line([]string{addr}, key) + "\n"); err != nil {
		return errors.WrapIf(err, "cannot write known_hosts")
	}
	h.log.WithFields(logrus.Fields{"host": addr, "fingerprint": fp}).Info("host key added to known_hosts")
	return nil
}

func (h *hostKeys) replaceChanged(key ssh.PublicKey, want []knownhosts.KnownKey) error {
	addr := knownHostAddress(h.host, h.port)
	expected := make([]string, len(want))
	for i, w := range want {
		expected[i] = ssh.FingerprintSHA256(w.Key)
	}
	presented := ssh.FingerprintSHA256(key)
	if h.batch {
		return errors.WithDetails(ErrHostKey, "host", addr, "expected", strings.Join(expected, ", "), "presented", presented)
	}
	ok, err := confirm(fmt.Sprintf(
		"WARNING: HOST KEY CHANGED for '%s'.\nExpected: %s\nPresented: %s\nReplace stored key and continue (yes/no)? ",
		addr, strings.Join(expected, ", "), presented))
	if err != nil {
		return err
	}
	if !ok {
		return errors.WithDetails(ErrHostKey, "host", addr, "reason", "key changed")
	}

	data, err := os.ReadFile(h.file)
	if err != nil {
		return errors.WrapIf(err, "cannot read known_hosts")
	}
	updated := removeKnownHostEntries(data, h.host, h.port)
	if len(updated) > 0 && updated[len(updated)-1] != '\n' {
		updated = append(updated, '\n')
	}
	updated = append(updated, knownhosts.Line([]string{addr}, key)+"\n"...)
	if err := os.WriteFile(h.file, updated, 0o600); err != nil {
		return errors.WrapIf(err, "cannot write known_hosts")
	}
	h.log.WithFields(logrus.Fields{"host": addr, "fingerprint": presented}).Warn("host key replaced in known_hosts")
	return nil
}

func knownHostAddress(host string, port int) string {
	if port == 22 {
		return host
	}
	return fmt.Sprintf("[%s]:%d", host, port)
}

// removeKnownHostEntries drops lines whose host field names host:port.
func removeKnownHostEntries(data []byte, host string, port int) []byte {
	match := map[string]bool{
		host:                               true,
		fmt.Sprintf("[%s]:%d", host, port): true,
	}
	if port != 22 {
		delete(match, host)
	}

	lines := strings.Split(string(data), "\n")
	keep := lines[:0]
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			keep = append(keep, line)
			continue
		}
		hosts := fields[0]
		if strings.HasPrefix(hosts, "@") {
			if len(fields) < 2 {
				keep = append(keep, line)
				continue
			}
			hosts = fields[1]
		}
		drop := false
		for _, h := range strings.Split(hosts, ",") {
			if match[h] {
				drop = true
				break
			}
		}
		if !drop {
			keep = append(keep, line)
		}
	}
	return []byte(strings.Join(keep, "\n"))
}

// authMethods tries the agent, then default key files, then (interactive
// only) a password.
func authMethods(user, host string, batch bool) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if sock := strings.TrimSpace(os.Getenv("SSH_AUTH_SOCK")); sock != "" {
		methods = append(methods, ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				return nil, err
			}
			defer conn.Close()
			return agent.NewClient(conn).Signers()
		}))
	}
	if signers := keyFileSigners(); len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	if !batch {
		p := &passwordCache{prompt: fmt.Sprintf("%s@%s's password: ", user, host)}
		methods = append(methods, ssh.PasswordCallback(p.get), ssh.KeyboardInteractive(p.answer))
	}
	if len(methods) == 0 {
		return nil, errors.New("no SSH auth methods available: start ssh-agent or add a key to ~/.ssh")
	}
	return methods, nil
}

// keyFileSigners loads unencrypted default keys; protected ones are skipped.
func keyFileSigners() []ssh.Signer {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var signers []ssh.Signer
	for _, name := range privateKeyFiles {
		pem, err := os.ReadFile(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		if s, err := ssh.ParsePrivateKey(pem); err == nil {
			signers = append(signers, s)
		}
	}
	return signers
}

// passwordCache asks once and reuses the answer for keyboard-interactive.
type passwordCache struct {
	prompt string

	once sync.Once
	pass string
	err  error
}

func (p *passwordCache) get() (string, error) {
	p.once.Do(func() {
		p.pass, p.err = prompter(p.prompt, true)
		if p.err != nil {
			p.err = errors.WrapIf(p.err, "cannot prompt for SSH password")
		}
	})
	return p.pass, p.err
}

func (p *passwordCache) answer(_, _ string, questions []string, echos []bool) ([]string, error) {
	pass, err := p.get()
	if err != nil {
		return nil, err
	}
	answers := make([]string, len(questions))
	for i := range questions {
		if i < len(echos) && echos[i] {
			continue
		}
		answers[i] = pass
	}
	return answers, nil
}
