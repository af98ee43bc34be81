package gatelib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Compile-time interface check: sftpProber must implement Prober.
var _ Prober = (*sftpProber)(nil)

// SFTPProberOpts configures SFTP probing. Credentials come from the asset
// URL; key auth falls back to the usual ~/.ssh identities.
type SFTPProberOpts struct {
	// SSHKeyPath points at an explicit private key. Empty tries the
	// default key paths.
	SSHKeyPath string
	// KnownHostsFile overrides the TOFU known_hosts location.
	KnownHostsFile string
}

// sftpProber probes sftp:// assets over SSH. Host keys follow the
// trust-on-first-use policy of the known_hosts file.
type sftpProber struct {
	sshKeyPath     string
	knownHostsFile string
	readLimit      int64
	retry          RetryConfig
}

func NewSFTPProber(opts *ProbeOpts, sftpOpts *SFTPProberOpts) Prober {
	if sftpOpts == nil {
		sftpOpts = &SFTPProberOpts{}
	}
	kh := sftpOpts.KnownHostsFile
	if kh == "" {
		kh = KnownHostsPath
	}
	return &sftpProber{
		sshKeyPath:     sftpOpts.SSHKeyPath,
		knownHostsFile: kh,
		readLimit:      opts.readLimit(),
		retry:          opts.retry(),
	}
}

func (p *sftpProber) Probe(ctx context.Context, rawURL string) (ProbeResult, error) {
	target, err := parseSFTPURL(rawURL)
	if err != nil {
		return ProbeResult{}, err
	}
	var res ProbeResult
	err = withRetries(ctx, p.retry, func() error {
		var ferr error
		res, ferr = p.fetch(ctx, target)
		return ferr
	})
	return res, err
}

type sftpTarget struct {
	rawURL   string
	host     string
	path     string
	user     string
	password string
}

func parseSFTPURL(rawURL string) (*sftpTarget, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, NewPermanentError("sftp", "parse", err)
	}
	if strings.ToLower(parsed.Scheme) != "sftp" {
		return nil, NewPermanentError("sftp", "scheme",
			fmt.Errorf("unsupported scheme %q, expected sftp", parsed.Scheme))
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return nil, NewPermanentError("sftp", "path",
			fmt.Errorf("empty or root path in SFTP URL: file path is required"))
	}

	var user, password string
	if parsed.User != nil {
		user = parsed.User.Username()
		if p, ok := parsed.User.Password(); ok {
			password = p
		}
	}

	host := parsed.Host
	if !strings.Contains(host, ":") {
		host += ":22"
	}

	return &sftpTarget{
		rawURL:   rawURL,
		host:     host,
		path:     parsed.Path,
		user:     user,
		password: password,
	}, nil
}

func (p *sftpProber) fetch(ctx context.Context, t *sftpTarget) (ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return ProbeResult{}, err
	}
	sshConn, client, err := p.connect(t)
	if err != nil {
		return ProbeResult{}, classifySFTPError("connect", err)
	}
	defer sshConn.Close()
	defer client.Close()

	info, err := client.Stat(t.path)
	if err != nil {
		return ProbeResult{}, classifySFTPError("stat", err)
	}

	res := ProbeResult{
		URL:           StripURLCredentials(t.rawURL),
		ContentLength: info.Size(),
	}
	if !looksLikeImage("", t.rawURL) {
		return res, nil
	}

	f, err := client.Open(t.path)
	if err != nil {
		return ProbeResult{}, classifySFTPError("open", err)
	}
	defer f.Close()

	meta, derr := DecodeImageMeta(io.LimitReader(f, p.readLimit))
	if derr != nil {
		return ProbeResult{}, NewPermanentError("sftp", "decode",
			fmt.Errorf("%s: %w", t.path, derr))
	}
	res.Width = meta.Width
	res.Height = meta.Height
	res.Decoded = true
	return res, nil
}

// connect establishes an SSH connection and opens an SFTP subsystem.
// Returns both the SSH client (for lifecycle management) and the SFTP
// client.
func (p *sftpProber) connect(t *sftpTarget) (*ssh.Client, *sftp.Client, error) {
	authMethods, err := buildAuthMethods(t.password, p.sshKeyPath)
	if err != nil {
		return nil, nil, err
	}

	config := &ssh.ClientConfig{
		User:            t.user,
		Auth:            authMethods,
		HostKeyCallback: newTOFUHostKeyCallback(p.knownHostsFile),
	}

	sshConn, err := ssh.Dial("tcp", t.host, config)
	if err != nil {
		return nil, nil, err
	}
	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, nil, err
	}
	return sshConn, client, nil
}

// buildAuthMethods constructs SSH auth methods based on available
// credentials. Priority: password auth (if provided) > explicit SSH key >
// default SSH key paths.
func buildAuthMethods(password, sshKeyPath string) ([]ssh.AuthMethod, error) {
	if password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}

	keyPaths := resolveSSHKeyPaths(sshKeyPath)
	for _, kp := range keyPaths {
		pemBytes, err := os.ReadFile(kp)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pemBytes)
		if err != nil {
			var ppErr *ssh.PassphraseMissingError
			if errors.As(err, &ppErr) {
				return nil, fmt.Errorf("sftp: SSH key %q is passphrase-protected; passphrase-protected keys are not supported", kp)
			}
			continue
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	return nil, fmt.Errorf("sftp: no authentication method available, provide a password in the URL or an SSH key at %s", strings.Join(keyPaths, ", "))
}

// resolveSSHKeyPaths returns the list of SSH key paths to try.
// If explicitPath is set, only that path is returned.
func resolveSSHKeyPaths(explicitPath string) []string {
	if explicitPath != "" {
		return []string{explicitPath}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		home + "/.ssh/id_ed25519",
		home + "/.ssh/id_rsa",
	}
}

// classifySFTPError classifies SFTP/SSH errors into transient or permanent.
// os.ErrNotExist and *ssh.ExitError are permanent. net.Error is transient.
func classifySFTPError(op string, err error) *ProbeError {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return NewPermanentError("sftp", op, err)
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return NewPermanentError("sftp", op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewTransientError("sftp", op, err)
	}
	return NewPermanentError("sftp", op, err)
}
