package avito

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// UploadConfig carries the FTP drop credentials. Host may omit the
// port; 21 is assumed.
type UploadConfig struct {
	Host       string
	User       string
	Password   string
	RemotePath string
	Timeout    time.Duration
}

// Uploader pushes rendered feeds to the Avito FTP drop.
type Uploader struct {
	cfg UploadConfig
}

// NewUploader creates an uploader with the given credentials.
func NewUploader(cfg UploadConfig) *Uploader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Uploader{cfg: cfg}
}

// Upload stores the feed bytes at the configured remote path.
func (u *Uploader) Upload(ctx context.Context, r io.Reader) error {
	if u.cfg.Host == "" {
		return eris.New("avito: ftp host not configured")
	}
	if u.cfg.RemotePath == "" {
		return eris.New("avito: remote path not configured")
	}

	host := u.cfg.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}

	zap.L().Debug("avito: connecting", zap.String("host", host), zap.String("path", u.cfg.RemotePath))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(u.cfg.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return eris.Wrap(err, "avito: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	user, pass := u.cfg.User, u.cfg.Password
	if user == "" {
		user, pass = "anonymous", "anonymous@"
	}
	if err := conn.Login(user, pass); err != nil {
		return eris.Wrap(err, "avito: ftp login")
	}

	if err := conn.Stor(u.cfg.RemotePath, r); err != nil {
		return eris.Wrap(err, "avito: ftp store")
	}

	zap.L().Info("avito: feed uploaded",
		zap.String("host", host),
		zap.String("path", u.cfg.RemotePath),
	)
	return nil
}

// UploadFile uploads a feed file from disk.
func (u *Uploader) UploadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrap(err, "avito: open feed file")
	}
	defer f.Close()
	return u.Upload(ctx, f)
}
