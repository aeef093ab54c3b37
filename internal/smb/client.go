// Package smb realizes the abstract server-side filesystem ("serverPath")
// as a real SMB2 share, reachable over the network rather than assumed to be
// a second local directory.
package smb

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hirochachacha/go-smb2"
	"go.uber.org/zap"
)

// Client handles an SMB2 connection and the file operations the sync engine
// needs against it.
type Client struct {
	server string
	share  string
	port   int

	username string
	password string
	domain   string

	conn    net.Conn
	dialer  *smb2.Dialer
	session *smb2.Session
	fs      *smb2.Share

	mu        sync.RWMutex
	connected bool

	logger *zap.Logger
}

// ClientConfig contains configuration for creating an SMB client.
type ClientConfig struct {
	Server   string
	Share    string
	Port     int // 0 = default 445
	Username string
	Password string
	Domain   string
}

// NewClient creates a new SMB client instance.
func NewClient(cfg *ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Server == "" {
		return nil, fmt.Errorf("server cannot be empty")
	}
	if cfg.Share == "" {
		return nil, fmt.Errorf("share cannot be empty")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	port := cfg.Port
	if port == 0 {
		port = 445
	}

	return &Client{
		server:   cfg.Server,
		share:    cfg.Share,
		port:     port,
		username: cfg.Username,
		password: cfg.Password,
		domain:   cfg.Domain,
		logger:   logger.With(zap.String("component", "smb")),
	}, nil
}

// Connect establishes a connection to the SMB server and mounts the share.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected")
	}

	c.logger.Info("connecting to SMB server",
		zap.String("server", c.server),
		zap.String("share", c.share),
		zap.Int("port", c.port))

	addr := fmt.Sprintf("%s:%d", c.server, c.port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	c.conn = conn

	c.dialer = &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     c.username,
			Password: c.password,
			Domain:   c.domain,
		},
	}

	session, err := c.dialer.Dial(conn)
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create SMB session: %w", err)
	}
	c.session = session

	fs, err := session.Mount(c.share)
	if err != nil {
		c.session.Logoff()
		c.conn.Close()
		return fmt.Errorf("failed to mount share %s: %w", c.share, err)
	}
	c.fs = fs
	c.connected = true

	c.logger.Info("successfully connected to SMB server",
		zap.String("server", c.server),
		zap.String("share", c.share))

	return nil
}

// Disconnect closes the SMB connection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	c.logger.Info("disconnecting from SMB server", zap.String("server", c.server))

	if c.fs != nil {
		if err := c.fs.Umount(); err != nil {
			c.logger.Warn("failed to unmount share", zap.Error(err))
		}
		c.fs = nil
	}

	if c.session != nil {
		if err := c.session.Logoff(); err != nil {
			c.logger.Warn("failed to logoff session", zap.Error(err))
		}
		c.session = nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close connection", zap.Error(err))
		}
		c.conn = nil
	}

	c.connected = false
	c.dialer = nil

	c.logger.Info("disconnected from SMB server")
	return nil
}

// IsConnected returns true if the client is currently connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Server returns the server address.
func (c *Client) Server() string { return c.server }

// Share returns the share name.
func (c *Client) Share() string { return c.share }

func (c *Client) shareHandle() (*smb2.Share, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return nil, fmt.Errorf("not connected to SMB server")
	}
	return c.fs, nil
}

// Download copies remotePath (relative to the share root) to localPath (an
// absolute local path), creating parent directories as needed.
func (c *Client) Download(remotePath, localPath string) error {
	fs, err := c.shareHandle()
	if err != nil {
		return err
	}

	c.logger.Debug("downloading file", zap.String("remote", remotePath), zap.String("local", localPath))

	remoteFile, err := fs.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer remoteFile.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create local directory: %w", err)
	}

	localFile, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	defer localFile.Close()

	written, err := io.Copy(localFile, remoteFile)
	if err != nil {
		os.Remove(localPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	c.logger.Info("file downloaded", zap.String("remote", remotePath), zap.Int64("bytes", written))
	return nil
}

// Upload copies localPath to remotePath (relative to the share root),
// creating remote parent directories as needed. Whole-file copy only -- no
// delta/block-level transfer.
func (c *Client) Upload(localPath, remotePath string) error {
	fs, err := c.shareHandle()
	if err != nil {
		return err
	}

	c.logger.Debug("uploading file", zap.String("local", localPath), zap.String("remote", remotePath))

	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file %s: %w", localPath, err)
	}
	defer localFile.Close()

	localInfo, err := localFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat local file: %w", err)
	}
	if !localInfo.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", localPath)
	}

	remoteDir := filepath.Dir(remotePath)
	if remoteDir != "." && remoteDir != "/" {
		_ = fs.MkdirAll(remoteDir, 0755)
	}

	remoteFile, err := fs.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}
	defer remoteFile.Close()

	written, err := io.Copy(remoteFile, localFile)
	if err != nil {
		fs.Remove(remotePath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	c.logger.Info("file uploaded", zap.String("remote", remotePath), zap.Int64("bytes", written))
	return nil
}

// OpenFile opens remotePath for streaming reads, backing
// HydrationHandler.DataProvider. Caller must Close the returned handle.
func (c *Client) OpenFile(remotePath string) (io.ReadCloser, error) {
	fs, err := c.shareHandle()
	if err != nil {
		return nil, err
	}
	f, err := fs.Open(remotePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	return f, nil
}

// MkdirAll creates remotePath and any missing parents on the share.
func (c *Client) MkdirAll(remotePath string) error {
	fs, err := c.shareHandle()
	if err != nil {
		return err
	}
	if remotePath == "" || remotePath == "." {
		return nil
	}
	if err := fs.MkdirAll(remotePath, 0755); err != nil {
		return fmt.Errorf("failed to mkdir %s: %w", remotePath, err)
	}
	return nil
}

// Rename moves oldRemotePath to newRemotePath on the share.
func (c *Client) Rename(oldRemotePath, newRemotePath string) error {
	fs, err := c.shareHandle()
	if err != nil {
		return err
	}

	c.logger.Debug("renaming remote entry", zap.String("old", oldRemotePath), zap.String("new", newRemotePath))

	f, err := fs.Open(oldRemotePath)
	if err != nil {
		return fmt.Errorf("failed to open %s for rename: %w", oldRemotePath, err)
	}
	defer f.Close()

	if err := f.Rename(newRemotePath); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", oldRemotePath, newRemotePath, err)
	}
	return nil
}

// RemoteFileInfo describes a remote file or directory.
type RemoteFileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// ListRemote lists entries under remotePath (relative to the share root; ""
// for the share root).
func (c *Client) ListRemote(remotePath string) ([]RemoteFileInfo, error) {
	fs, err := c.shareHandle()
	if err != nil {
		return nil, err
	}

	if remotePath == "" {
		remotePath = "."
	}

	entries, err := fs.ReadDir(remotePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory %s: %w", remotePath, err)
	}

	result := make([]RemoteFileInfo, 0, len(entries))
	for _, info := range entries {
		fullPath := info.Name()
		if remotePath != "." {
			fullPath = filepath.Join(remotePath, info.Name())
		}
		result = append(result, RemoteFileInfo{
			Name:    info.Name(),
			Path:    fullPath,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   info.IsDir(),
		})
	}

	return result, nil
}

// ListRemoteRecursive walks the whole share tree under remotePath, depth
// first; remotefeed.SMBLister uses it to snapshot the server tree.
func (c *Client) ListRemoteRecursive(remotePath string) ([]RemoteFileInfo, error) {
	entries, err := c.ListRemote(remotePath)
	if err != nil {
		return nil, err
	}

	result := make([]RemoteFileInfo, 0, len(entries))
	for _, e := range entries {
		result = append(result, e)
		if e.IsDir {
			children, err := c.ListRemoteRecursive(e.Path)
			if err != nil {
				return nil, err
			}
			result = append(result, children...)
		}
	}
	return result, nil
}

// GetMetadata retrieves metadata for a single remote entry.
func (c *Client) GetMetadata(remotePath string) (*RemoteFileInfo, error) {
	fs, err := c.shareHandle()
	if err != nil {
		return nil, err
	}

	info, err := fs.Stat(remotePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata for %s: %w", remotePath, err)
	}

	return &RemoteFileInfo{
		Name:    info.Name(),
		Path:    remotePath,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

// Exists reports whether remotePath exists on the share.
func (c *Client) Exists(remotePath string) bool {
	_, err := c.GetMetadata(remotePath)
	return err == nil
}

// Delete removes a single remote file.
func (c *Client) Delete(remotePath string) error {
	fs, err := c.shareHandle()
	if err != nil {
		return err
	}
	if err := fs.Remove(remotePath); err != nil {
		return fmt.Errorf("failed to delete %s: %w", remotePath, err)
	}
	return nil
}

// RemoveAll recursively removes remotePath, file or directory.
func (c *Client) RemoveAll(remotePath string) error {
	info, err := c.GetMetadata(remotePath)
	if err != nil {
		// Deleting something already absent is a no-op (idempotent apply).
		return nil
	}

	if !info.IsDir {
		return c.Delete(remotePath)
	}

	children, err := c.ListRemote(remotePath)
	if err != nil {
		return fmt.Errorf("failed to list %s for recursive delete: %w", remotePath, err)
	}
	for _, child := range children {
		if err := c.RemoveAll(child.Path); err != nil {
			return err
		}
	}

	fs, err := c.shareHandle()
	if err != nil {
		return err
	}
	if err := fs.Remove(remotePath); err != nil {
		return fmt.Errorf("failed to remove directory %s: %w", remotePath, err)
	}
	return nil
}
