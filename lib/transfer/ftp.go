package transfer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jlaffaye/ftp"
)

type ftpClient struct {
	conn *ftp.ServerConn
}

// Dial connects and logs in to the configured FTP server. The
// underlying client is always passive; the passive flag only selects
// classic PASV over EPSV for servers that mishandle the extended verb.
func Dial(ctx context.Context, cfg Config) (Client, error) {
	timeout := time.Duration(cfg.Timeout * float64(time.Second))
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(timeout),
	}
	if !cfg.Passive {
		opts = append(opts, ftp.DialWithDisabledEPSV(true))
	}

	conn, err := ftp.Dial(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), opts...)
	if err != nil {
		return nil, fmt.Errorf("ftp connect: %w", err)
	}
	err = conn.Login(cfg.Username, cfg.Password)
	if err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp login: %w", err)
	}
	return ftpClient{conn: conn}, nil
}

// Dialer binds a config into a DialFunc for the pipeline.
func Dialer(cfg Config) DialFunc {
	return func(ctx context.Context) (Client, error) {
		return Dial(ctx, cfg)
	}
}

func (c ftpClient) CurrentDir() (string, error) {
	return c.conn.CurrentDir()
}

func (c ftpClient) ChangeDir(path string) error {
	return c.conn.ChangeDir(path)
}

func (c ftpClient) MakeDir(path string) error {
	return c.conn.MakeDir(path)
}

func (c ftpClient) NameList(path string) ([]string, error) {
	return c.conn.NameList(path)
}

func (c ftpClient) Store(name string, r io.Reader) error {
	return c.conn.Stor(name, r)
}

func (c ftpClient) Delete(name string) error {
	return c.conn.Delete(name)
}

func (c ftpClient) RemoveDir(path string) error {
	return c.conn.RemoveDir(path)
}

func (c ftpClient) Quit() error {
	return c.conn.Quit()
}
