package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/blanjamart/account-service/internal/domain/entity"
	repo "github.com/blanjamart/account-service/internal/domain/repository"
	"github.com/blanjamart/account-service/pkg/helpers"
)

// DefaultSearchPageSize applies when a search request omits the page size
// or supplies a non-positive one.
const DefaultSearchPageSize = 2

// DefaultLevel is assigned to every newly registered account.
const DefaultLevel = "user"

// Service orchestrates account state: registration, login, profile and
// photo updates, password reset and deletion. All durable state lives in
// the repository; the service holds only request-scoped copies.
type Service struct {
	Repo   repo.UserRepository
	Hasher CredentialHasher
	Tokens TokenIssuer
	Assets AssetStore
	Redis  *redis.Client
	Logger *logrus.Logger

	// DefaultPhotoURL is the placeholder used when registration has no
	// upload. It is configuration, not mutable state.
	DefaultPhotoURL string

	ProfileTTL  time.Duration
	CallTimeout time.Duration
}

func NewService(r repo.UserRepository, hasher CredentialHasher, tokens TokenIssuer, assets AssetStore, rdb *redis.Client, logger *logrus.Logger, defaultPhotoURL string, profileTTL, callTimeout time.Duration) *Service {
	return &Service{
		Repo:            r,
		Hasher:          hasher,
		Tokens:          tokens,
		Assets:          assets,
		Redis:           rdb,
		Logger:          logger,
		DefaultPhotoURL: defaultPhotoURL,
		ProfileTTL:      profileTTL,
		CallTimeout:     callTimeout,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Photo    *ImageUpload // optional; nil falls back to the placeholder
}

type LoginResult struct {
	Token string       `json:"token"`
	User  *entity.User `json:"user"`
}

// UpdateProfileInput carries a partial profile overwrite. Nil fields are
// "not provided" and leave the stored value unchanged. Balance follows the
// legacy form semantics: nil leaves it, "" clears it to no value, and a
// numeric string sets it.
type UpdateProfileInput struct {
	Username   *string
	Fullname   *string
	Email      *string
	Phone      *string
	City       *string
	Address    *string
	PostCode   *string
	CreditCard *string
	Gender     *string
	Level      *string
	Balance    *string
}

func profileKey(id string) string {
	return "user:profile:" + id
}

// callCtx bounds a single external collaborator call.
func (s *Service) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.CallTimeout)
}

func (s *Service) warn(msg string, err error, fields logrus.Fields) {
	if s.Logger == nil {
		return
	}
	if fields == nil {
		fields = logrus.Fields{}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.Logger.WithFields(fields).Warn(msg)
}

func (s *Service) invalidateProfile(ctx context.Context, id string) {
	if s.Redis == nil {
		return
	}
	if err := helpers.RedisDel(ctx, s.Redis, profileKey(id)); err != nil {
		s.warn("profile cache invalidation failed", err, logrus.Fields{"user_id": id})
	}
}

// GetByID returns the user with the password hash stripped.
func (s *Service) GetByID(ctx context.Context, id string) (*entity.User, error) {
	if s.Redis != nil {
		var cached entity.User
		ok, err := helpers.RedisGetJSON(ctx, s.Redis, profileKey(id), &cached)
		if err != nil {
			s.warn("profile cache read failed", err, logrus.Fields{"user_id": id})
		} else if ok {
			return &cached, nil
		}
	}

	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	clean := u.Sanitized()
	if s.Redis != nil {
		if err := helpers.RedisSetJSON(ctx, s.Redis, profileKey(id), clean, s.ProfileTTL); err != nil {
			s.warn("profile cache write failed", err, logrus.Fields{"user_id": id})
		}
	}
	return clean, nil
}

// ListAll returns every user. Password hashes are stripped before the
// records leave the service boundary.
func (s *Service) ListAll(ctx context.Context) ([]entity.User, error) {
	users, err := s.Repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	out := make([]entity.User, len(users))
	for i, u := range users {
		out[i] = *u.Sanitized()
	}
	return out, nil
}

// Search returns users whose username contains the fragment,
// case-insensitively, ordered by id. Pages are 1-based; a non-positive
// page size falls back to DefaultSearchPageSize.
func (s *Service) Search(ctx context.Context, fragment string, page, pageSize int) ([]entity.User, error) {
	if pageSize <= 0 {
		pageSize = DefaultSearchPageSize
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	users, err := s.Repo.SearchByUsername(ctx, fragment, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	out := make([]entity.User, len(users))
	for i, u := range users {
		out[i] = *u.Sanitized()
	}
	return out, nil
}

// FindByEmail returns the user with the exact email, or nil when none
// exists. Doubles as the internal uniqueness probe during registration.
func (s *Service) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := s.Repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if u == nil {
		return nil, nil
	}
	return u.Sanitized(), nil
}

// Register creates a new account. The sequencing is load-bearing: hash
// first, then resolve the photo, then the email check, then the username
// check. A taken email short-circuits before the username is ever looked
// at, so ErrEmailTaken and ErrUsernameTaken are mutually exclusive.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		s.warn("password hashing failed", err, logrus.Fields{"email": in.Email})
		return nil, fmt.Errorf("%w: %v", ErrHashing, err)
	}

	photo := Asset{URL: s.DefaultPhotoURL, Handle: ""}
	if in.Photo != nil {
		uctx, cancel := s.callCtx(ctx)
		photo, err = s.Assets.Upload(uctx, *in.Photo)
		cancel()
		if err != nil {
			s.warn("photo upload failed", err, logrus.Fields{"email": in.Email})
			return nil, fmt.Errorf("%w: %v", ErrAssetStore, err)
		}
	}

	existing, err := s.Repo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	taken, err := s.Repo.FindByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if taken != nil {
		return nil, ErrUsernameTaken
	}

	u := &entity.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		PhotoURL:     photo.URL,
		PhotoHandle:  photo.Handle,
		Level:        DefaultLevel,
	}
	if err := s.Repo.Insert(ctx, u); err != nil {
		// The schema constraints win any race the pre-checks missed.
		switch {
		case errors.Is(err, repo.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		case errors.Is(err, repo.ErrDuplicateUsername):
			return nil, ErrUsernameTaken
		}
		s.warn("insert user failed", err, logrus.Fields{"email": in.Email})
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "username": u.Username}).Info("user registered")
	}
	return u.Sanitized(), nil
}

// resolveIdentifier accepts either an email or a username. Email is tried
// first; a storage failure on the username fallback is deliberately
// collapsed into "no match" so login never distinguishes storage trouble
// from bad credentials on that path.
func (s *Service) resolveIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	u, err := s.Repo.FindByEmail(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if u != nil {
		return u, nil
	}
	u, err = s.Repo.FindByUsername(ctx, identifier)
	if err != nil {
		s.warn("username fallback lookup failed", err, nil)
		return nil, nil
	}
	return u, nil
}

// Login verifies credentials against the record matched by the identifier
// and issues a bearer token carrying {email, level}. Unknown identifier and
// wrong password produce the same error.
func (s *Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	u, err := s.resolveIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}

	if !s.Hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.Tokens.Issue(u.Email, u.Level)
	if err != nil {
		s.warn("token issue failed", err, logrus.Fields{"user_id": u.ID})
		return nil, fmt.Errorf("%w: %v", ErrTokenIssue, err)
	}

	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": u.ID}).Info("login successful")
	}
	return &LoginResult{Token: token, User: u.Sanitized()}, nil
}

func parseBalance(in *string) (repo.BalancePatch, error) {
	if in == nil {
		return repo.BalancePatch{}, nil
	}
	trimmed := strings.TrimSpace(*in)
	if trimmed == "" {
		return repo.BalancePatch{Set: true, Valid: false}, nil
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return repo.BalancePatch{}, fmt.Errorf("balance must be an integer")
	}
	return repo.BalancePatch{Set: true, Valid: true, Value: n}, nil
}

// UpdateProfile overwrites only the provided fields and returns the
// refreshed record without the password hash. Email and username
// uniqueness is not re-validated here; the schema constraints remain the
// backstop.
func (s *Service) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*entity.User, error) {
	balance, err := parseBalance(in.Balance)
	if err != nil {
		return nil, err
	}

	ch := repo.ProfileChanges{
		Username:   in.Username,
		Fullname:   in.Fullname,
		Email:      in.Email,
		Phone:      in.Phone,
		City:       in.City,
		Address:    in.Address,
		PostCode:   in.PostCode,
		CreditCard: in.CreditCard,
		Gender:     in.Gender,
		Level:      in.Level,
		Balance:    balance,
	}
	if err := s.Repo.Update(ctx, id, ch); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.invalidateProfile(ctx, id)

	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return u.Sanitized(), nil
}

// UpdatePhoto uploads the new image, stores its URL and handle, then
// deletes the previous asset best-effort. The refreshed record is returned
// with the password hash stripped.
func (s *Service) UpdatePhoto(ctx context.Context, id string, img ImageUpload) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	prevHandle := u.PhotoHandle

	uctx, cancel := s.callCtx(ctx)
	asset, err := s.Assets.Upload(uctx, img)
	cancel()
	if err != nil {
		s.warn("photo upload failed", err, logrus.Fields{"user_id": id})
		return nil, fmt.Errorf("%w: %v", ErrAssetStore, err)
	}

	if err := s.Repo.UpdatePhoto(ctx, id, asset.URL, asset.Handle); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// The placeholder has an empty handle, so it is never deleted.
	if prevHandle != "" {
		dctx, cancel := s.callCtx(ctx)
		if err := s.Assets.Delete(dctx, prevHandle); err != nil {
			s.warn("previous photo cleanup failed", err, logrus.Fields{"user_id": id, "handle": prevHandle})
		}
		cancel()
	}

	s.invalidateProfile(ctx, id)

	refreshed, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return refreshed.Sanitized(), nil
}

// ResetPassword re-hashes and overwrites the credential of the account
// registered under the email.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		s.warn("password hashing failed", err, logrus.Fields{"email": email})
		return fmt.Errorf("%w: %v", ErrHashing, err)
	}

	u, err := s.Repo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if u == nil {
		return ErrEmailNotRegistered
	}

	if err := s.Repo.UpdatePassword(ctx, email, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.invalidateProfile(ctx, u.ID)
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": u.ID}).Info("password reset")
	}
	return nil
}

// Delete removes the account permanently and cleans up its photo asset.
func (s *Service) Delete(ctx context.Context, id string) error {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := s.Repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if u.PhotoHandle != "" {
		dctx, cancel := s.callCtx(ctx)
		if err := s.Assets.Delete(dctx, u.PhotoHandle); err != nil {
			s.warn("photo cleanup failed", err, logrus.Fields{"user_id": id, "handle": u.PhotoHandle})
		}
		cancel()
	}

	s.invalidateProfile(ctx, id)
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": id}).Info("user deleted")
	}
	return nil
}
