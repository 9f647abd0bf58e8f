package services

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"pocketledger/internal/blob"
	"pocketledger/internal/clock"
	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/models"
)

const (
	maxFailedLogins   = 5
	lockoutDuration   = 15 * time.Minute
	minPasswordLen    = 8
	maxDisplayNameLen = 100
)

var allowedAvatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// userService handles user-related business logic.
type userService struct {
	db         *gorm.DB
	blobs      blob.Store
	clock      clock.Clock
	maxAvatars int64
}

// NewUserService creates a new UserServicer. maxAvatarBytes bounds profile
// picture uploads.
func NewUserService(db *gorm.DB, blobs blob.Store, clk clock.Clock, maxAvatarBytes int64) UserServicer {
	return &userService{db: db, blobs: blobs, clock: clk, maxAvatars: maxAvatarBytes}
}

// CreateUser registers a new user
func (s *userService) CreateUser(ctx context.Context, email, password, displayName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "email and password are required")
	}
	if len(password) < minPasswordLen {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "password must be at least 8 characters")
	}
	displayName = strings.TrimSpace(displayName)
	if len(displayName) > maxDisplayNameLen {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "display name is too long")
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperrors.Backend(err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Email:       email,
		Password:    string(hashedPassword),
		DisplayName: displayName,
		IsActive:    true,
	}
	if err := db.Create(user).Error; err != nil {
		return nil, apperrors.Backend(err)
	}
	return user, nil
}

// GetUserByEmail retrieves an active user by email
func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(email)), true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Backend(err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, apperrors.ErrAuthRequired
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Backend(err)
	}
	return &user, nil
}

// VerifyPassword checks if the provided password matches the stored hash
func (s *userService) VerifyPassword(user *models.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	return err == nil
}

// AttemptLogin checks credentials, counting failures and locking the
// account for a while after too many in a row.
func (s *userService) AttemptLogin(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.clock.Now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, apperrors.ErrAccountLocked
	}

	db := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID)

	if !s.VerifyPassword(user, password) {
		updates := map[string]any{"failed_login_attempts": gorm.Expr("failed_login_attempts + 1")}
		if user.FailedLoginAttempts+1 >= maxFailedLogins {
			updates["locked_until"] = now.Add(lockoutDuration)
		}
		if err := db.Updates(updates).Error; err != nil {
			return nil, apperrors.Backend(err)
		}
		return nil, apperrors.ErrInvalidCredentials
	}

	err = db.Updates(map[string]any{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login_at":         now,
	}).Error
	if err != nil {
		return nil, apperrors.Backend(err)
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	return user, nil
}

// UpdateProfile changes the user's display name.
func (s *userService) UpdateProfile(ctx context.Context, userID, displayName string) (*models.User, error) {
	displayName = strings.TrimSpace(displayName)
	if len(displayName) > maxDisplayNameLen {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "display name is too long")
	}
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("display_name", displayName).Error; err != nil {
		return nil, apperrors.Backend(err)
	}
	return s.GetUserByID(ctx, userID)
}

// UploadAvatar stores a profile picture under the user's key and records
// its URL. The stored content type is sniffed from the data; a declared
// type that disagrees with it is rejected.
func (s *userService) UploadAvatar(ctx context.Context, userID, contentType string, r io.Reader) (*models.User, error) {
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(io.LimitReader(r, s.maxAvatars+1), 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, apperrors.Wrap(apperrors.ErrValidation, err)
	}
	if len(head) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "avatar is empty")
	}
	sniffed := http.DetectContentType(head)
	if !allowedAvatarTypes[sniffed] {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "avatar must be a JPEG, PNG, GIF or WebP image")
	}
	if contentType != "" && contentType != "application/octet-stream" && contentType != sniffed {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "declared content type does not match the image data")
	}

	limited := &limitCheckReader{r: br, max: s.maxAvatars}
	url, err := s.blobs.Put(ctx, blob.AvatarKey(userID), sniffed, limited)
	if limited.exceeded {
		return nil, apperrors.ErrPayloadTooBig
	}
	if err != nil {
		return nil, apperrors.Backend(err)
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("photo_url", url).Error; err != nil {
		return nil, apperrors.Backend(err)
	}
	return s.GetUserByID(ctx, userID)
}

// StoreRefreshTokenHash saves the hash of the user's current refresh token.
// An empty hash revokes it.
func (s *userService) StoreRefreshTokenHash(ctx context.Context, userID, tokenHash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("refresh_token_hash", tokenHash)
	if res.Error != nil {
		return apperrors.Backend(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// GetRefreshTokenHash returns the stored refresh token hash.
func (s *userService) GetRefreshTokenHash(ctx context.Context, userID string) (string, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.RefreshTokenHash, nil
}

// limitCheckReader fails the read once more than max bytes were seen.
type limitCheckReader struct {
	r        io.Reader
	n        int64
	max      int64
	exceeded bool
}

func (l *limitCheckReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.max {
		l.exceeded = true
		return n, apperrors.ErrPayloadTooBig
	}
	return n, err
}
