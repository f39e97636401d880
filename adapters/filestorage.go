package adapters

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const fileStorageService = "file_storage"

const fileFields = "files(id, name, mimeType, modifiedTime, size, webViewLink, owners)"

// FileStorage reads the user's files through the Drive API.
type FileStorage struct {
	svc    *drive.Service
	cache  *cache
	logger *log.Logger
}

func NewFileStorage(ctx context.Context, accessToken string, logger *log.Logger) (*FileStorage, error) {
	if logger == nil {
		logger = log.Default()
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &FileStorage{svc: svc, cache: newCache(defaultCacheTTL), logger: logger}, nil
}

// RecentFiles returns the most recently modified files.
func (f *FileStorage) RecentFiles(ctx context.Context, limit int) ([]map[string]any, error) {
	return f.list(ctx, "trashed=false", "modifiedTime desc", limit)
}

// SearchFiles returns files whose name contains the given term.
func (f *FileStorage) SearchFiles(ctx context.Context, term string, limit int) ([]map[string]any, error) {
	q := fmt.Sprintf("name contains '%s' and trashed=false", escapeQuery(term))
	return f.list(ctx, q, "modifiedTime desc", limit)
}

// SharedFiles returns files shared with the user.
func (f *FileStorage) SharedFiles(ctx context.Context, limit int) ([]map[string]any, error) {
	return f.list(ctx, "sharedWithMe and trashed=false", "sharedWithMeTime desc", limit)
}

// Folders returns the user's folders.
func (f *FileStorage) Folders(ctx context.Context, limit int) ([]map[string]any, error) {
	q := "mimeType='application/vnd.google-apps.folder' and trashed=false"
	return f.list(ctx, q, "name", limit)
}

// GoogleDocs returns the user's Google Docs documents.
func (f *FileStorage) GoogleDocs(ctx context.Context, limit int) ([]map[string]any, error) {
	return f.byMimeType(ctx, "mimeType='application/vnd.google-apps.document'", limit)
}

// Spreadsheets returns the user's Google Sheets spreadsheets.
func (f *FileStorage) Spreadsheets(ctx context.Context, limit int) ([]map[string]any, error) {
	return f.byMimeType(ctx, "mimeType='application/vnd.google-apps.spreadsheet'", limit)
}

// Presentations returns the user's Google Slides presentations.
func (f *FileStorage) Presentations(ctx context.Context, limit int) ([]map[string]any, error) {
	return f.byMimeType(ctx, "mimeType='application/vnd.google-apps.presentation'", limit)
}

// PDFs returns the user's PDF files.
func (f *FileStorage) PDFs(ctx context.Context, limit int) ([]map[string]any, error) {
	return f.byMimeType(ctx, "mimeType='application/pdf'", limit)
}

// Images returns the user's image files.
func (f *FileStorage) Images(ctx context.Context, limit int) ([]map[string]any, error) {
	return f.byMimeType(ctx, "mimeType contains 'image/'", limit)
}

func (f *FileStorage) byMimeType(ctx context.Context, mimeClause string, limit int) ([]map[string]any, error) {
	return f.list(ctx, mimeClause+" and trashed=false", "modifiedTime desc", limit)
}

// StorageUsage returns used and total quota in bytes. Total is zero for
// unlimited plans.
func (f *FileStorage) StorageUsage(ctx context.Context) (used, total int64, err error) {
	about, err := f.svc.About.Get().Fields("storageQuota").Context(ctx).Do()
	if err != nil {
		return 0, 0, apiError(fileStorageService, "fetch storage quota: %w", err)
	}
	if about.StorageQuota == nil {
		return 0, 0, nil
	}
	return about.StorageQuota.Usage, about.StorageQuota.Limit, nil
}

// FindFileByName returns the files matching a name, best match first.
func (f *FileStorage) FindFileByName(ctx context.Context, name string, limit int) ([]map[string]any, error) {
	return f.SearchFiles(ctx, name, limit)
}

// ReadFile downloads a file's text content. Google Workspace documents are
// exported as plain text; other files are downloaded as-is.
func (f *FileStorage) ReadFile(ctx context.Context, fileID string) (string, error) {
	meta, err := f.svc.Files.Get(fileID).Fields("id, name, mimeType").Context(ctx).Do()
	if err != nil {
		return "", apiError(fileStorageService, "fetch file %s: %w", fileID, err)
	}

	var body io.ReadCloser
	if strings.HasPrefix(meta.MimeType, "application/vnd.google-apps") {
		resp, err := f.svc.Files.Export(fileID, "text/plain").Context(ctx).Download()
		if err != nil {
			return "", apiError(fileStorageService, "export file %s: %w", meta.Name, err)
		}
		body = resp.Body
	} else {
		resp, err := f.svc.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return "", apiError(fileStorageService, "download file %s: %w", meta.Name, err)
		}
		body = resp.Body
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", apiError(fileStorageService, "read file %s: %w", meta.Name, err)
	}
	return string(data), nil
}

func (f *FileStorage) list(ctx context.Context, q, orderBy string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 10
	}
	cacheKey := fmt.Sprintf("list:%s:%s:%d", q, orderBy, limit)
	if cached, ok := f.cache.get(cacheKey); ok {
		return cached.([]map[string]any), nil
	}

	resp, err := f.svc.Files.List().Q(q).OrderBy(orderBy).
		PageSize(int64(limit)).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return nil, apiError(fileStorageService, "list files for %q: %w", q, err)
	}

	records := make([]map[string]any, 0, len(resp.Files))
	for _, file := range resp.Files {
		records = append(records, fileRecord(file))
	}

	f.cache.put(cacheKey, records)
	return records, nil
}

func fileRecord(file *drive.File) map[string]any {
	record := map[string]any{
		"id":       file.Id,
		"name":     file.Name,
		"type":     file.MimeType,
		"modified": file.ModifiedTime,
		"size":     file.Size,
		"link":     file.WebViewLink,
	}
	if len(file.Owners) > 0 {
		record["owner"] = file.Owners[0].DisplayName
	}
	return record
}

// escapeQuery escapes single quotes for Drive query strings.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
