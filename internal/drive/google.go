package drive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/lms-community/lms-api/internal/models"
	"github.com/lms-community/lms-api/pkg/config"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
)

const folderMimeType = "application/vnd.google-apps.folder"

// tokenStore is the slice of the user repository the factory needs.
type tokenStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateGoogleAccessToken(ctx context.Context, userID, accessToken string) error
}

// GoogleFactory builds Drive clients authenticated with a user's stored
// OAuth token pair. Refreshed access tokens are written back to the
// user row so later requests skip the refresh round trip.
type GoogleFactory struct {
	cfg    config.DriveConfig
	users  tokenStore
	logger *zap.Logger
}

// NewGoogleFactory constructs a GoogleFactory.
func NewGoogleFactory(cfg config.DriveConfig, users tokenStore, logger *zap.Logger) *GoogleFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleFactory{cfg: cfg, users: users, logger: logger}
}

// ForUser returns a Drive client acting as the given user.
func (f *GoogleFactory) ForUser(ctx context.Context, userID string) (Client, error) {
	user, err := f.users.FindByID(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user for drive access")
	}
	if !user.HasDriveAccess() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "user has not granted Google Drive access, please re-authenticate")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		RedirectURL:  f.cfg.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{driveapi.DriveFileScope},
	}

	// Expiry is not persisted, so the first use refreshes the access
	// token and the refreshed value is saved for subsequent requests.
	token := &oauth2.Token{
		AccessToken:  *user.GoogleAccessToken,
		RefreshToken: *user.GoogleRefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}

	source := &persistingTokenSource{
		base:    oauthCfg.TokenSource(ctx, token),
		last:    token.AccessToken,
		userID:  userID,
		users:   f.users,
		logger:  f.logger,
		saveCtx: context.WithoutCancel(ctx),
	}

	httpClient := oauth2.NewClient(ctx, source)
	svc, err := driveapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to initialise drive client")
	}

	return &googleClient{svc: svc}, nil
}

// persistingTokenSource saves refreshed access tokens back to the user
// row. Save failures are logged, not surfaced: the in-memory token is
// still valid for this request.
type persistingTokenSource struct {
	base    oauth2.TokenSource
	mu      sync.Mutex
	last    string
	userID  string
	users   tokenStore
	logger  *zap.Logger
	saveCtx context.Context
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := tok.AccessToken != s.last
	if changed {
		s.last = tok.AccessToken
	}
	s.mu.Unlock()

	if changed {
		if err := s.users.UpdateGoogleAccessToken(s.saveCtx, s.userID, tok.AccessToken); err != nil {
			s.logger.Warn("failed to persist refreshed drive token",
				zap.String("user_id", s.userID), zap.Error(err))
		}
	}

	return tok, nil
}

// googleClient implements Client on the Drive v3 API.
type googleClient struct {
	svc *driveapi.Service
}

func (c *googleClient) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	terms := []string{
		fmt.Sprintf("name='%s'", escapeQuery(name)),
		fmt.Sprintf("mimeType='%s'", folderMimeType),
		"trashed=false",
	}
	if parentID != "" {
		terms = append(terms, fmt.Sprintf("'%s' in parents", escapeQuery(parentID)))
	}

	list, err := c.svc.Files.List().
		Q(strings.Join(terms, " and ")).
		Spaces("drive").
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("list folders: %w", err)
	}

	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (c *googleClient) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := &driveapi.File{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	folder, err := c.svc.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	return folder.Id, nil
}

func (c *googleClient) UploadFile(ctx context.Context, in UploadInput) (*File, error) {
	meta := &driveapi.File{Name: in.Name, MimeType: in.MimeType}
	if in.FolderID != "" {
		meta.Parents = []string{in.FolderID}
	}

	created, err := c.svc.Files.Create(meta).
		Media(in.Body, googleapi.ContentType(in.MimeType)).
		Fields("id, name, mimeType, size, webViewLink, webContentLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	return fromDriveFile(created), nil
}

func (c *googleClient) AllowPublicRead(ctx context.Context, fileID string) error {
	_, err := c.svc.Permissions.Create(fileID, &driveapi.Permission{
		Role: "reader",
		Type: "anyone",
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create permission: %w", err)
	}
	return nil
}

func (c *googleClient) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		if isNotFound(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "file not found in drive")
		}
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (c *googleClient) GetFile(ctx context.Context, fileID string) (*File, error) {
	got, err := c.svc.Files.Get(fileID).
		Fields("id, name, mimeType, size, webViewLink, webContentLink").
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found in drive")
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return fromDriveFile(got), nil
}

func fromDriveFile(f *driveapi.File) *File {
	return &File{
		ID:             f.Id,
		Name:           f.Name,
		MimeType:       f.MimeType,
		Size:           f.Size,
		WebViewLink:    f.WebViewLink,
		WebContentLink: f.WebContentLink,
	}
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// escapeQuery escapes quotes and backslashes in Drive query literals.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
