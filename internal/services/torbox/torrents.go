package torbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

// CreateTorrentData is returned when a torrent is added
type CreateTorrentData struct {
	Hash      string `json:"hash"`
	TorrentID int    `json:"torrent_id"`
	AuthID    string `json:"auth_id"`
}

// TorrentFile is one file inside a remote torrent
type TorrentFile struct {
	ID        int    `json:"id"`
	MD5       string `json:"md5"`
	Hash      string `json:"hash"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	S3Path    string `json:"s3_path"`
	MimeType  string `json:"mimetype"`
	ShortName string `json:"short_name"`
}

// Torrent is one entry of the remote torrent list
type Torrent struct {
	ID               int           `json:"id"`
	Hash             string        `json:"hash"`
	Name             string        `json:"name"`
	Magnet           string        `json:"magnet"`
	Size             int64         `json:"size"`
	Active           bool          `json:"active"`
	CreatedAt        string        `json:"created_at"`
	UpdatedAt        string        `json:"updated_at"`
	DownloadState    string        `json:"download_state"`
	Progress         float64       `json:"progress"`
	DownloadSpeed    int64         `json:"download_speed"`
	UploadSpeed      int64         `json:"upload_speed"`
	Seeds            int           `json:"seeds"`
	Peers            int           `json:"peers"`
	Ratio            float64       `json:"ratio"`
	ETA              int           `json:"eta"`
	Tracker          string        `json:"tracker"`
	TotalUploaded    int64         `json:"total_uploaded"`
	TotalDownloaded  int64         `json:"total_downloaded"`
	Cached           bool          `json:"cached"`
	Private          bool          `json:"private"`
	DownloadPresent  bool          `json:"download_present"`
	DownloadFinished bool          `json:"download_finished"`
	Files            []TorrentFile `json:"files"`
}

// CreateTorrent adds a torrent from a magnet link or a .torrent file
func (c *Client) CreateTorrent(ctx context.Context, magnet string, torrentFile []byte, fileName string) (*CreateTorrentData, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if len(torrentFile) > 0 {
		if fileName == "" {
			fileName = "upload.torrent"
		}
		part, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(torrentFile); err != nil {
			return nil, fmt.Errorf("failed to write torrent data: %w", err)
		}
	} else if magnet != "" {
		if err := writer.WriteField("magnet", magnet); err != nil {
			return nil, fmt.Errorf("failed to add magnet field: %w", err)
		}
	} else {
		return nil, fmt.Errorf("magnet or torrent file is required")
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/torrents/createtorrent", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result Response[CreateTorrentData]
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	if err := result.err(); err != nil {
		return nil, fmt.Errorf("torrent creation failed: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"torrent_id": result.Data.TorrentID,
		"hash":       result.Data.Hash,
		"detail":     result.Detail,
	}).Info("Created TorBox torrent")
	return &result.Data, nil
}

// ListTorrents returns every torrent on the account
func (c *Client) ListTorrents(ctx context.Context) ([]Torrent, error) {
	var result Response[[]Torrent]
	if err := c.get(ctx, c.baseURL+"/torrents/mylist?bypass_cache=true", &result); err != nil {
		return nil, err
	}
	if err := result.err(); err != nil {
		return nil, fmt.Errorf("failed to list torrents: %w", err)
	}
	return result.Data, nil
}

// ControlTorrent runs an operation (delete, pause, resume, reannounce) on a torrent
func (c *Client) ControlTorrent(ctx context.Context, torrentID int, operation string) error {
	body, err := json.Marshal(map[string]interface{}{
		"torrent_id": torrentID,
		"operation":  operation,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/torrents/controltorrent", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result Response[json.RawMessage]
	if err := c.do(req, &result); err != nil {
		return err
	}
	if err := result.err(); err != nil {
		return fmt.Errorf("failed to %s torrent %d: %w", operation, torrentID, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"torrent_id": torrentID,
		"operation":  operation,
	}).Info("Controlled TorBox torrent")
	return nil
}

// DeleteTorrent removes a torrent from the account
func (c *Client) DeleteTorrent(ctx context.Context, torrentID int) error {
	return c.ControlTorrent(ctx, torrentID, "delete")
}

// RequestDownloadLink returns a direct link for one file of a finished torrent
func (c *Client) RequestDownloadLink(ctx context.Context, torrentID, fileID int) (string, error) {
	params := url.Values{}
	params.Set("token", c.apiKey)
	params.Set("torrent_id", strconv.Itoa(torrentID))
	params.Set("file_id", strconv.Itoa(fileID))

	var result Response[string]
	if err := c.get(ctx, c.baseURL+"/torrents/requestdl?"+params.Encode(), &result); err != nil {
		return "", err
	}
	if err := result.err(); err != nil {
		return "", fmt.Errorf("failed to request download link: %w", err)
	}
	return result.Data, nil
}
