//go:build windows
// +build windows

// Package cloudfiles provides Go bindings for the Windows Cloud Files API.
package cloudfiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// fetchChunkSize is the size of each TransferData chunk streamed back to the
// OS filter during hydration. 64 KiB keeps progress reporting fine-grained;
// a larger chunk trades that for marginally less per-call overhead.
const fetchChunkSize = 64 * 1024

// HydrationHandler services FetchData/CancelFetchData callbacks from the OS
// filter, streaming bytes from a DataProvider and reporting progress. Manual
// hydrate/dehydrate/pin operations are delegated to a PlaceholderStore
// rather than duplicated here.
type HydrationHandler struct {
	clientRoot   string
	dataProvider DataProvider
	store        *PlaceholderStore
	chunkSize    int64
	logger       *zap.Logger

	mu               sync.RWMutex
	activeHydrations map[CF_TRANSFER_KEY]*activeHydration
}

// activeHydration tracks an in-progress hydration operation.
type activeHydration struct {
	cancel           context.CancelFunc
	filePath         string
	totalBytes       int64
	bytesTransferred int64
}

// DataProvider provides data for hydrating placeholder files.
type DataProvider interface {
	// GetFileReader returns a reader for the file at the given relative path.
	// The reader should be positioned at the given offset.
	GetFileReader(ctx context.Context, relativePath string, offset int64) (io.ReadCloser, error)
}

// NewHydrationHandler creates a new hydration handler. clientRoot is the
// sync root's local path, used only to strip the OS filter's
// "\<sync root folder>\<relative path>" prefix off callback paths.
func NewHydrationHandler(clientRoot string, provider DataProvider, store *PlaceholderStore, logger *zap.Logger) *HydrationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HydrationHandler{
		clientRoot:       clientRoot,
		dataProvider:     provider,
		store:            store,
		chunkSize:        fetchChunkSize,
		logger:           logger,
		activeHydrations: make(map[CF_TRANSFER_KEY]*activeHydration),
	}
}

// SetChunkSize overrides the transfer chunk size, mainly for tests.
func (h *HydrationHandler) SetChunkSize(size int64) {
	if size > 0 {
		h.chunkSize = size
	}
}

// handleFetchDataCallback adapts HandleFetchData to the SyncRootManager's
// FetchDataCallback signature.
func (h *HydrationHandler) handleFetchDataCallback(info *FetchDataInfo) error {
	return h.HandleFetchData(context.Background(), info)
}

// HandleFetchDataCallback is the exported form of handleFetchDataCallback,
// for callers outside this package wiring a HydrationHandler directly to a
// SyncRootManager (SyncRootManager.SetFetchDataCallback).
func (h *HydrationHandler) HandleFetchDataCallback(info *FetchDataInfo) error {
	return h.handleFetchDataCallback(info)
}

// relativePath strips the sync-root folder name and leading separators off
// a filter-reported path, returning a forward-slash server-relative path.
func (h *HydrationHandler) relativePath(filePath string) string {
	p := strings.TrimPrefix(filePath, "\\")
	p = strings.TrimPrefix(p, "/")

	syncRootFolderName := filepath.Base(h.clientRoot)
	if strings.HasPrefix(p, syncRootFolderName+"\\") || strings.HasPrefix(p, syncRootFolderName+"/") {
		p = p[len(syncRootFolderName)+1:]
	}

	return strings.ReplaceAll(p, "\\", "/")
}

// HandleFetchData handles a fetch-data callback from the OS filter: a user
// (or an application) opened a dehydrated placeholder and the filter needs
// its bytes. Every exit path issues exactly one terminal transfer so the
// caller blocked on the read always unblocks: full completion and early EOF
// both report success (covering only the bytes actually read in the EOF
// case); any other failure reports E_FAIL covering the original required
// length so the OS surfaces an I/O error instead of hanging.
func (h *HydrationHandler) HandleFetchData(ctx context.Context, info *FetchDataInfo) error {
	ctx, cancel := context.WithCancel(ctx)

	relPath := h.relativePath(info.FilePath)

	hydration := &activeHydration{
		cancel:     cancel,
		filePath:   relPath,
		totalBytes: info.FileSize,
	}
	h.mu.Lock()
	h.activeHydrations[info.TransferKey] = hydration
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.activeHydrations, info.TransferKey)
		h.mu.Unlock()
		cancel()
	}()

	if relPath == "" {
		h.logger.Warn("fetch data: empty file identity", zap.String("raw_path", info.FilePath))
		return h.fail(info, HRESULT_FROM_WIN32_ERROR_FILE_NOT_FOUND)
	}

	h.logger.Info("starting hydration",
		zap.String("file", relPath),
		zap.Int64("offset", info.RequiredOffset),
		zap.Int64("size", info.FileSize),
	)

	reader, err := h.dataProvider.GetFileReader(ctx, relPath, info.RequiredOffset)
	if err != nil {
		h.logger.Error("failed to get file reader", zap.String("file", relPath), zap.Error(err))
		return h.fail(info, E_FAIL)
	}
	defer reader.Close()

	offset := info.RequiredOffset
	remaining := info.RequiredLength
	if remaining <= 0 {
		remaining = info.FileSize - offset
	}

	// A zero-byte request (e.g. a zero-length file) still needs exactly one
	// terminal transfer to unblock the caller, with nothing to read.
	if remaining <= 0 {
		if err := TransferData(info.ConnectionKey, info.TransferKey, info.RequestKey, nil, offset, true); err != nil {
			h.logger.Error("failed to transfer empty chunk", zap.String("file", relPath), zap.Error(err))
			return h.fail(info, E_FAIL)
		}
		return nil
	}

	buffer := make([]byte, h.chunkSize)
	transferred := int64(0)

	for remaining > 0 {
		select {
		case <-ctx.Done():
			h.logger.Info("hydration cancelled", zap.String("file", relPath), zap.Int64("transferred", transferred))
			return h.fail(info, E_FAIL)
		default:
		}

		toRead := h.chunkSize
		if toRead > remaining {
			toRead = remaining
		}

		n, readErr := io.ReadFull(reader, buffer[:toRead])
		eof := errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF)
		if readErr != nil && !eof {
			h.logger.Error("failed to read data", zap.String("file", relPath), zap.Error(readErr))
			return h.fail(info, E_FAIL)
		}

		isLastChunk := eof || (remaining-int64(n)) <= 0
		if n > 0 {
			if err := TransferData(info.ConnectionKey, info.TransferKey, info.RequestKey, buffer[:n], offset, isLastChunk); err != nil {
				h.logger.Error("failed to transfer data", zap.String("file", relPath), zap.Error(err))
				return h.fail(info, E_FAIL)
			}
			offset += int64(n)
			remaining -= int64(n)
			transferred += int64(n)

			h.mu.Lock()
			if active, ok := h.activeHydrations[info.TransferKey]; ok {
				active.bytesTransferred = transferred
			}
			h.mu.Unlock()

			h.reportProgress(info.ConnectionKey, info.TransferKey, info.FileSize, offset)
		} else if isLastChunk {
			// EOF with nothing left to read this call: still owe a terminal
			// transfer, empty, to close out the request.
			if err := TransferData(info.ConnectionKey, info.TransferKey, info.RequestKey, nil, offset, true); err != nil {
				h.logger.Error("failed to transfer terminal empty chunk", zap.String("file", relPath), zap.Error(err))
				return h.fail(info, E_FAIL)
			}
		}

		if eof {
			break
		}
	}

	h.logger.Info("hydration complete", zap.String("file", relPath), zap.Int64("bytes", transferred))
	return nil
}

// fail issues the single terminal failed transfer required by every exit
// path, covering the original required length so the caller unblocks.
func (h *HydrationHandler) fail(info *FetchDataInfo, hresult int32) error {
	length := info.RequiredLength
	if length <= 0 {
		length = info.FileSize - info.RequiredOffset
	}
	if err := TransferError(info.ConnectionKey, info.TransferKey, info.RequestKey, info.RequiredOffset, length, hresult); err != nil {
		h.logger.Error("failed to report terminal transfer error",
			zap.String("file", info.FilePath),
			zap.Int64("length", length),
			zap.Error(err),
		)
		return err
	}
	return fmt.Errorf("fetch data failed: HRESULT 0x%08X", uint32(hresult))
}

// CancelHydration cancels an active hydration by transfer key.
func (h *HydrationHandler) CancelHydration(transferKey CF_TRANSFER_KEY) {
	h.mu.RLock()
	active, ok := h.activeHydrations[transferKey]
	h.mu.RUnlock()

	if ok && active != nil {
		h.logger.Info("cancelling hydration", zap.String("file", active.filePath), zap.Int64("transferred", active.bytesTransferred))
		active.cancel()
	}
}

// CancelHydrationByPath cancels an active hydration by file path. The path is
// reduced with relativePath first, so a filter-reported path matches the
// server-relative path HandleFetchData records.
func (h *HydrationHandler) CancelHydrationByPath(filePath string) {
	relPath := h.relativePath(filePath)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, active := range h.activeHydrations {
		if active.filePath == relPath {
			h.logger.Info("cancelling hydration by path", zap.String("file", filePath))
			active.cancel()
			return
		}
	}
}

// GetActiveHydrations returns a snapshot of in-progress hydrations.
func (h *HydrationHandler) GetActiveHydrations() []HydrationStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]HydrationStatus, 0, len(h.activeHydrations))
	for _, active := range h.activeHydrations {
		result = append(result, HydrationStatus{
			FilePath:         active.filePath,
			TotalBytes:       active.totalBytes,
			BytesTransferred: active.bytesTransferred,
		})
	}
	return result
}

// HydrationStatus represents the status of an active hydration.
type HydrationStatus struct {
	FilePath         string
	TotalBytes       int64
	BytesTransferred int64
}

// reportProgress reports hydration progress to Windows. CfReportProviderProgress
// is best-effort (absent on older Windows builds), so its error is dropped.
func (h *HydrationHandler) reportProgress(connectionKey CF_CONNECTION_KEY, transferKey CF_TRANSFER_KEY, total, completed int64) {
	_ = ReportProviderProgress(connectionKey, transferKey, total, completed)
}

// HydrateFile manually downloads a placeholder's full content, delegating to
// the PlaceholderStore rather than opening its own handle.
func (h *HydrationHandler) HydrateFile(ctx context.Context, relativePath string) error {
	clientAbs := filepath.Join(h.clientRoot, relativePath)
	return h.store.Hydrate(clientAbs, 0, -1)
}

// DehydrateFile manually releases a placeholder's cached content, delegating
// to the PlaceholderStore.
func (h *HydrationHandler) DehydrateFile(ctx context.Context, relativePath string) error {
	clientAbs := filepath.Join(h.clientRoot, relativePath)
	return h.store.Dehydrate(clientAbs, 0, -1)
}

// SetPinned sets whether a file should always be kept hydrated, delegating
// to the PlaceholderStore.
func (h *HydrationHandler) SetPinned(relativePath string, pinned bool) error {
	clientAbs := filepath.Join(h.clientRoot, relativePath)
	return h.store.SetPinned(clientAbs, pinned)
}
