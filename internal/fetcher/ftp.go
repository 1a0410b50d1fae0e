package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher. User and Password apply when the URL
// carries no credentials; with neither, the login is anonymous, which Census
// mirrors (ftp2.census.gov) accept.
type FTPOptions struct {
	Timeout  time.Duration
	User     string
	Password string
}

// FTPFetcher retrieves files over FTP, one control connection per file.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher returns an FTPFetcher; the timeout defaults to 30s.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

// ftpTarget is a parsed ftp:// URL.
type ftpTarget struct {
	addr     string // host:port, port 21 unless given
	path     string
	user     string
	password string
	hasUser  bool
}

func parseFTPTarget(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return ftpTarget{}, eris.Errorf("ftp: expected ftp scheme, got %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		return ftpTarget{}, eris.Errorf("ftp: no file path in %q", rawURL)
	}

	t := ftpTarget{addr: u.Host, path: u.Path}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		t.addr = net.JoinHostPort(u.Host, "21")
	}
	if u.User != nil {
		t.hasUser = true
		t.user = u.User.Username()
		t.password, _ = u.User.Password()
	}
	return t, nil
}

// credentials picks URL credentials, then the configured ones, then anonymous.
func (f *FTPFetcher) credentials(t ftpTarget) (string, string) {
	switch {
	case t.hasUser:
		return t.user, t.password
	case f.opts.User != "":
		return f.opts.User, f.opts.Password
	default:
		return "anonymous", "anonymous@"
	}
}

// ftpBody streams one RETR; Close ends the transfer and the session.
type ftpBody struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (b *ftpBody) Close() error {
	return errors.Join(b.Response.Close(), b.conn.Quit())
}

// Download retrieves the file. Closing the returned reader ends the FTP
// session.
func (f *FTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	t, err := parseFTPTarget(rawURL)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "fetcher.ftp"), zap.String("addr", t.addr))
	log.Debug("ftp: retrieving", zap.String("path", t.path))

	conn, err := ftp.Dial(t.addr, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "ftp: dial %s", t.addr)
	}
	user, pass := f.credentials(t)
	if err := conn.Login(user, pass); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp: login to %s as %s", t.addr, user)
	}

	resp, err := conn.Retr(t.path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp: retrieve %s", t.path)
	}
	return &ftpBody{Response: resp, conn: conn}, nil
}

// DownloadToFile implements Fetcher.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	n, err := writeFile(path, body)
	if cerr := body.Close(); err == nil && cerr != nil {
		return n, eris.Wrap(cerr, "ftp: finish transfer")
	}
	return n, err
}
