package googledrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Ensure API implements the interface.
var _ driven.StorageAPI = (*API)(nil)

const (
	// DefaultBaseURL is the Drive v3 REST root.
	DefaultBaseURL = "https://www.googleapis.com/drive/v3"

	listPageSize = 1000
	aboutFields  = "user(displayName,emailAddress,permissionId),storageQuota(limit,usage)"
	fileFields   = "nextPageToken,files(id,name,mimeType,size,md5Checksum,modifiedTime)"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// API reads Drive account data with an authenticated client.
type API struct {
	baseURL string
}

// NewAPI creates a Drive API reader. An empty baseURL uses DefaultBaseURL.
func NewAPI(baseURL string) *API {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &API{baseURL: strings.TrimSuffix(baseURL, "/")}
}

type aboutResponse struct {
	User struct {
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
		PermissionID string `json:"permissionId"`
	} `json:"user"`
	StorageQuota struct {
		Limit string `json:"limit"`
		Usage string `json:"usage"`
	} `json:"storageQuota"`
}

type filesResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Files         []struct {
		ID           string     `json:"id"`
		Name         string     `json:"name"`
		MimeType     string     `json:"mimeType"`
		Size         string     `json:"size"`
		MD5Checksum  string     `json:"md5Checksum"`
		ModifiedTime *time.Time `json:"modifiedTime"`
	} `json:"files"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// About returns the Drive user and storage quota.
func (a *API) About(ctx context.Context, client *http.Client) (*driven.StorageAbout, error) {
	params := url.Values{"fields": {aboutFields}}

	var resp aboutResponse
	if err := a.get(ctx, client, "/about", params, &resp); err != nil {
		return nil, err
	}

	if resp.User.PermissionID == "" {
		return nil, fmt.Errorf("about: response has no user id")
	}

	return &driven.StorageAbout{
		AccountID:   resp.User.PermissionID,
		Email:       resp.User.EmailAddress,
		DisplayName: resp.User.DisplayName,
		QuotaUsed:   parseInt64(resp.StorageQuota.Usage),
		QuotaTotal:  parseInt64(resp.StorageQuota.Limit),
	}, nil
}

// ListFiles returns one page of the user's non-trashed files.
func (a *API) ListFiles(ctx context.Context, client *http.Client, pageToken string) (*driven.FilePage, error) {
	params := url.Values{
		"pageSize": {strconv.Itoa(listPageSize)},
		"fields":   {fileFields},
		"q":        {"trashed = false"},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var resp filesResponse
	if err := a.get(ctx, client, "/files", params, &resp); err != nil {
		return nil, err
	}

	page := &driven.FilePage{
		Files:         make([]driven.RemoteFile, 0, len(resp.Files)),
		NextPageToken: resp.NextPageToken,
	}
	for _, f := range resp.Files {
		page.Files = append(page.Files, driven.RemoteFile{
			ID:         f.ID,
			Name:       f.Name,
			MimeType:   f.MimeType,
			Size:       parseInt64(f.Size),
			Checksum:   f.MD5Checksum,
			ModifiedAt: f.ModifiedTime,
		})
	}
	return page, nil
}

func (a *API) get(ctx context.Context, client *http.Client, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("drive %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode drive %s: %w", path, err)
	}
	return nil
}

// apiError converts a non-2xx Drive response.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &driven.ProviderAPIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}

	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Error.Message != "" {
			apiErr.Message = parsed.Error.Message
		}
		if len(parsed.Error.Errors) > 0 {
			apiErr.Reason = parsed.Error.Errors[0].Reason
		}
	}
	return apiErr
}

// parseInt64 reads Drive's string-encoded int64 fields. Missing means zero.
func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
