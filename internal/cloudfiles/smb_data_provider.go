//go:build windows
// +build windows

package cloudfiles

import (
	"context"
	"fmt"
	"io"

	"github.com/nuviisync/core/internal/smb"
)

// SMBDataProvider implements DataProvider by opening the remote share
// directly, the reference transport for HydrationHandler in this repo.
type SMBDataProvider struct {
	client *smb.Client
}

// NewSMBDataProvider wraps an already-connected SMB client.
func NewSMBDataProvider(client *smb.Client) *SMBDataProvider {
	return &SMBDataProvider{client: client}
}

// GetFileReader implements DataProvider. go-smb2's file handle doesn't
// expose Seek through the io.ReadCloser OpenFile returns, so reaching offset
// is a discard-read, same as every other DataProvider in this package.
func (p *SMBDataProvider) GetFileReader(ctx context.Context, relativePath string, offset int64) (io.ReadCloser, error) {
	reader, err := p.client.OpenFile(relativePath)
	if err != nil {
		return nil, err
	}

	if offset > 0 {
		if _, err := io.CopyN(io.Discard, reader, offset); err != nil {
			reader.Close()
			return nil, fmt.Errorf("failed to seek to offset %d: %w", offset, err)
		}
	}

	return reader, nil
}
