package fetcher

import (
	"context"
	"net"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ftpServer is a single-threaded passive-mode FTP server serving files from
// memory, enough for RETR.
type ftpServer struct {
	ln       net.Listener
	files    map[string]string
	password string // "" accepts any password
	done     chan struct{}

	mu    sync.Mutex
	users []string
}

func startFTPServer(t *testing.T, files map[string]string, password string) *ftpServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &ftpServer{ln: ln, files: files, password: password, done: make(chan struct{})}
	go s.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		<-s.done
	})
	return s
}

func (s *ftpServer) addr() string { return s.ln.Addr().String() }

func (s *ftpServer) loggedIn() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.users...)
}

func (s *ftpServer) serve() {
	defer close(s.done)
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.session(c)
	}
}

func (s *ftpServer) session(c net.Conn) {
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))
	tp := textproto.NewConn(c)
	defer tp.Close() //nolint:errcheck

	reply := func(format string, args ...any) { _ = tp.PrintfLine(format, args...) }
	var data net.Listener
	defer func() {
		if data != nil {
			_ = data.Close()
		}
	}()

	reply("220 ready")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(cmd) {
		case "USER":
			s.mu.Lock()
			s.users = append(s.users, arg)
			s.mu.Unlock()
			reply("331 password required")
		case "PASS":
			if s.password != "" && arg != s.password {
				reply("530 login incorrect")
				continue
			}
			reply("230 logged in")
		case "TYPE":
			reply("200 type set")
		case "EPSV":
			if data, err = net.Listen("tcp", "127.0.0.1:0"); err != nil {
				reply("425 no data port")
				continue
			}
			reply("229 Entering Extended Passive Mode (|||%d|)", data.Addr().(*net.TCPAddr).Port)
		case "RETR":
			body, ok := s.files[arg]
			if !ok || data == nil {
				reply("550 %s: no such file", arg)
				continue
			}
			reply("150 opening data connection")
			dc, err := data.Accept()
			_ = data.Close()
			data = nil
			if err != nil {
				reply("425 data connection failed")
				continue
			}
			_, _ = dc.Write([]byte(body))
			_ = dc.Close()
			reply("226 transfer complete")
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 %s not implemented", cmd)
		}
	}
}

func TestRead_FTPThroughRouter(t *testing.T) {
	srv := startFTPServer(t, map[string]string{
		"/pub/pop.csv": "FIPS,total\n48453,1290188\n48201,4731145\n",
	}, "")
	r := NewRouter(HTTPOptions{}, FTPOptions{Timeout: 5 * time.Second})

	tbl, err := Read(context.Background(), r, "ftp://"+srv.addr()+"/pub/pop.csv", ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"FIPS", "total"}, tbl.Header)
	assert.Equal(t, [][]string{{"48453", "1290188"}, {"48201", "4731145"}}, tbl.Rows)
	assert.Equal(t, []string{"anonymous"}, srv.loggedIn())
}

func TestFTPFetcher_URLCredentials(t *testing.T) {
	srv := startFTPServer(t, map[string]string{"/data/x.csv": "a\n1\n"}, "s3cret")
	f := NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second, User: "ignored", Password: "wrong"})

	dest := filepath.Join(t.TempDir(), "x.csv")
	n, err := f.DownloadToFile(context.Background(), "ftp://census:s3cret@"+srv.addr()+"/data/x.csv", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(got))
	assert.Equal(t, []string{"census"}, srv.loggedIn())
}

func TestFTPFetcher_Errors(t *testing.T) {
	srv := startFTPServer(t, map[string]string{"/x.csv": "a\n"}, "s3cret")
	f := NewFTPFetcher(FTPOptions{Timeout: 5 * time.Second})

	_, err := f.Download(context.Background(), "ftp://"+srv.addr()+"/x.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login")

	_, err = f.Download(context.Background(), "ftp://u:s3cret@"+srv.addr()+"/missing.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieve /missing.csv")
}
