package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blanjamart/account-service/internal/domain/entity"
	repo "github.com/blanjamart/account-service/internal/domain/repository"
)

const placeholderURL = "https://cdn.example.com/default.png"

// fakeRepo is an in-memory UserRepository that records the order of the
// calls it receives, so the tests can assert sequencing, not just results.
type fakeRepo struct {
	users map[string]*entity.User
	calls []string
	next  int

	findEmailErr    error
	findUsernameErr error
	insertErr       error

	searchFragment string
	searchLimit    int
	searchOffset   int
	searchResult   []entity.User

	lastChanges repo.ProfileChanges
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[string]*entity.User{}}
}

func (f *fakeRepo) add(u entity.User) *entity.User {
	f.next++
	if u.ID == "" {
		u.ID = fmt.Sprintf("u-%d", f.next)
	}
	cp := u
	f.users[cp.ID] = &cp
	return &cp
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	f.calls = append(f.calls, "GetByID")
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) ListAll(_ context.Context) ([]entity.User, error) {
	f.calls = append(f.calls, "ListAll")
	out := make([]entity.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeRepo) SearchByUsername(_ context.Context, fragment string, limit, offset int) ([]entity.User, error) {
	f.calls = append(f.calls, "SearchByUsername")
	f.searchFragment, f.searchLimit, f.searchOffset = fragment, limit, offset
	return f.searchResult, nil
}

func (f *fakeRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	f.calls = append(f.calls, "FindByEmail")
	if f.findEmailErr != nil {
		return nil, f.findEmailErr
	}
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	f.calls = append(f.calls, "FindByUsername")
	if f.findUsernameErr != nil {
		return nil, f.findUsernameErr
	}
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) Insert(_ context.Context, u *entity.User) error {
	f.calls = append(f.calls, "Insert")
	if f.insertErr != nil {
		return f.insertErr
	}
	f.next++
	u.ID = fmt.Sprintf("u-%d", f.next)
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeRepo) Update(_ context.Context, id string, ch repo.ProfileChanges) error {
	f.calls = append(f.calls, "Update")
	u, ok := f.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	f.lastChanges = ch
	if ch.Username != nil {
		u.Username = *ch.Username
	}
	if ch.Fullname != nil {
		u.Fullname = *ch.Fullname
	}
	if ch.Email != nil {
		u.Email = *ch.Email
	}
	if ch.Balance.Set {
		if ch.Balance.Valid {
			v := ch.Balance.Value
			u.Balance = &v
		} else {
			u.Balance = nil
		}
	}
	return nil
}

func (f *fakeRepo) UpdatePassword(_ context.Context, email, hash string) error {
	f.calls = append(f.calls, "UpdatePassword")
	for _, u := range f.users {
		if u.Email == email {
			u.PasswordHash = hash
			return nil
		}
	}
	return repo.ErrNotFound
}

func (f *fakeRepo) UpdatePhoto(_ context.Context, id, url, handle string) error {
	f.calls = append(f.calls, "UpdatePhoto")
	u, ok := f.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.PhotoURL, u.PhotoHandle = url, handle
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	f.calls = append(f.calls, "Delete")
	if _, ok := f.users[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

type fakeHasher struct{ failHash bool }

func (h fakeHasher) Hash(plain string) (string, error) {
	if h.failHash {
		return "", errors.New("hash broke")
	}
	return "hashed:" + plain, nil
}

func (h fakeHasher) Verify(plain, hash string) bool {
	return hash == "hashed:"+plain
}

type fakeTokens struct{ err error }

func (t fakeTokens) Issue(email, level string) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return "token:" + email + ":" + level, nil
}

type fakeAssets struct {
	uploads   int
	deleted   []string
	uploadErr error
	deleteErr error
}

func (a *fakeAssets) Upload(_ context.Context, img ImageUpload) (Asset, error) {
	if a.uploadErr != nil {
		return Asset{}, a.uploadErr
	}
	a.uploads++
	return Asset{
		URL:    "https://cdn.example.com/" + img.Filename,
		Handle: "photos/" + img.Filename,
	}, nil
}

func (a *fakeAssets) Delete(_ context.Context, handle string) error {
	a.deleted = append(a.deleted, handle)
	return a.deleteErr
}

func newTestService(r *fakeRepo, assets *fakeAssets) *Service {
	return NewService(r, fakeHasher{}, fakeTokens{}, assets, nil, nil, placeholderURL, 0, 0)
}

func TestRegister_WithoutPhotoUsesPlaceholder(t *testing.T) {
	r := newFakeRepo()
	assets := &fakeAssets{}
	svc := newTestService(r, assets)

	u, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secretpw",
	})
	require.NoError(t, err)

	assert.Equal(t, placeholderURL, u.PhotoURL)
	assert.Empty(t, u.PhotoHandle)
	assert.Equal(t, DefaultLevel, u.Level)
	assert.Empty(t, u.PasswordHash, "hash must be stripped from the result")
	assert.Zero(t, assets.uploads)

	stored := r.users[u.ID]
	assert.Equal(t, "hashed:secretpw", stored.PasswordHash)
}

func TestRegister_WithPhotoStoresUploadedAsset(t *testing.T) {
	r := newFakeRepo()
	assets := &fakeAssets{}
	svc := newTestService(r, assets)

	u, err := svc.Register(context.Background(), RegisterInput{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "secretpw",
		Photo:    &ImageUpload{Filename: "me.png", ContentType: "image/png"},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/me.png", u.PhotoURL)
	assert.Equal(t, "photos/me.png", r.users[u.ID].PhotoHandle)
	assert.Equal(t, 1, assets.uploads)
}

func TestRegister_EmailTakenShortCircuitsUsernameCheck(t *testing.T) {
	r := newFakeRepo()
	r.add(entity.User{Username: "taken", Email: "dup@example.com"})
	svc := newTestService(r, &fakeAssets{})

	// Both the email and the username collide; the email check runs first
	// and wins, and the username is never looked up.
	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "taken",
		Email:    "dup@example.com",
		Password: "secretpw",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NotContains(t, r.calls, "FindByUsername")
}

func TestRegister_UsernameTaken(t *testing.T) {
	r := newFakeRepo()
	r.add(entity.User{Username: "carol", Email: "carol@example.com"})
	svc := newTestService(r, &fakeAssets{})

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "carol",
		Email:    "new@example.com",
		Password: "secretpw",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegister_InsertRaceMapsConstraintToTakenError(t *testing.T) {
	r := newFakeRepo()
	r.insertErr = repo.ErrDuplicateEmail
	svc := newTestService(r, &fakeAssets{})

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "dave",
		Email:    "dave@example.com",
		Password: "secretpw",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)

	r.insertErr = repo.ErrDuplicateUsername
	_, err = svc.Register(context.Background(), RegisterInput{
		Username: "dave",
		Email:    "dave@example.com",
		Password: "secretpw",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegister_HashFailure(t *testing.T) {
	r := newFakeRepo()
	svc := newTestService(r, &fakeAssets{})
	svc.Hasher = fakeHasher{failHash: true}

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "erin",
		Email:    "erin@example.com",
		Password: "secretpw",
	})
	assert.ErrorIs(t, err, ErrHashing)
	assert.Empty(t, r.calls, "no storage call before hashing succeeds")
}

func TestLogin_ByEmailAndByUsername(t *testing.T) {
	r := newFakeRepo()
	r.add(entity.User{
		Username:     "frank",
		Email:        "frank@example.com",
		PasswordHash: "hashed:secretpw",
		Level:        "user",
	})
	svc := newTestService(r, &fakeAssets{})

	for _, identifier := range []string{"frank@example.com", "frank"} {
		res, err := svc.Login(context.Background(), identifier, "secretpw")
		require.NoError(t, err, "identifier %q", identifier)
		assert.Equal(t, "token:frank@example.com:user", res.Token)
		assert.Empty(t, res.User.PasswordHash)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	r := newFakeRepo()
	r.add(entity.User{
		Username:     "grace",
		Email:        "grace@example.com",
		PasswordHash: "hashed:rightpw",
	})
	svc := newTestService(r, &fakeAssets{})

	_, err := svc.Login(context.Background(), "grace@example.com", "wrongpw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UsernameFallbackStorageErrorLooksLikeBadCredentials(t *testing.T) {
	r := newFakeRepo()
	r.findUsernameErr = errors.New("db down")
	svc := newTestService(r, &fakeAssets{})

	_, err := svc.Login(context.Background(), "someone", "secretpw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_EmailLookupStorageErrorSurfaces(t *testing.T) {
	r := newFakeRepo()
	r.findEmailErr = errors.New("db down")
	svc := newTestService(r, &fakeAssets{})

	_, err := svc.Login(context.Background(), "someone@example.com", "secretpw")
	assert.ErrorIs(t, err, ErrStorage)
}

func TestSearch_PaginationDefaultsAndOffset(t *testing.T) {
	r := newFakeRepo()
	svc := newTestService(r, &fakeAssets{})

	_, err := svc.Search(context.Background(), "al", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSearchPageSize, r.searchLimit)
	assert.Equal(t, 0, r.searchOffset)

	_, err = svc.Search(context.Background(), "al", 3, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, r.searchLimit)
	assert.Equal(t, 10, r.searchOffset)
	assert.Equal(t, "al", r.searchFragment)
}

func TestSearch_StripsPasswordHashes(t *testing.T) {
	r := newFakeRepo()
	r.searchResult = []entity.User{{Username: "henry", PasswordHash: "hashed:x"}}
	svc := newTestService(r, &fakeAssets{})

	out, err := svc.Search(context.Background(), "hen", 1, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].PasswordHash)
}

func TestGetByID(t *testing.T) {
	r := newFakeRepo()
	u := r.add(entity.User{Username: "iris", PasswordHash: "hashed:x"})
	svc := newTestService(r, &fakeAssets{})

	got, err := svc.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "iris", got.Username)
	assert.Empty(t, got.PasswordHash)

	_, err = svc.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAll_StripsPasswordHashes(t *testing.T) {
	r := newFakeRepo()
	r.add(entity.User{Username: "a", PasswordHash: "hashed:a"})
	r.add(entity.User{Username: "b", PasswordHash: "hashed:b"})
	svc := newTestService(r, &fakeAssets{})

	out, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, u := range out {
		assert.Empty(t, u.PasswordHash)
	}
}

func TestUpdateProfile_BalanceSemantics(t *testing.T) {
	ctx := context.Background()
	r := newFakeRepo()
	start := int64(100)
	u := r.add(entity.User{Username: "judy", Balance: &start})
	svc := newTestService(r, &fakeAssets{})

	// nil leaves the balance untouched
	_, err := svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{})
	require.NoError(t, err)
	assert.False(t, r.lastChanges.Balance.Set)
	require.NotNil(t, r.users[u.ID].Balance)
	assert.Equal(t, int64(100), *r.users[u.ID].Balance)

	// a numeric string sets it
	set := "250"
	_, err = svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{Balance: &set})
	require.NoError(t, err)
	require.NotNil(t, r.users[u.ID].Balance)
	assert.Equal(t, int64(250), *r.users[u.ID].Balance)

	// an empty string clears it
	empty := ""
	_, err = svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{Balance: &empty})
	require.NoError(t, err)
	assert.Nil(t, r.users[u.ID].Balance)

	// anything non-numeric is rejected before touching storage
	bad := "lots"
	_, err = svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{Balance: &bad})
	assert.EqualError(t, err, "balance must be an integer")
}

func TestUpdateProfile_PartialFieldsAndNotFound(t *testing.T) {
	ctx := context.Background()
	r := newFakeRepo()
	u := r.add(entity.User{Username: "kate", Fullname: "Kate", Email: "kate@example.com"})
	svc := newTestService(r, &fakeAssets{})

	name := "Katherine"
	got, err := svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{Fullname: &name})
	require.NoError(t, err)
	assert.Equal(t, "Katherine", got.Fullname)
	assert.Equal(t, "kate", got.Username, "unprovided fields stay put")
	assert.Empty(t, got.PasswordHash)

	_, err = svc.UpdateProfile(ctx, "missing", UpdateProfileInput{Fullname: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePhoto_ReplacesAndCleansUpPreviousAsset(t *testing.T) {
	ctx := context.Background()
	r := newFakeRepo()
	u := r.add(entity.User{Username: "liam", PhotoURL: "old-url", PhotoHandle: "photos/old.png"})
	assets := &fakeAssets{}
	svc := newTestService(r, assets)

	got, err := svc.UpdatePhoto(ctx, u.ID, ImageUpload{Filename: "new.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/new.png", got.PhotoURL)
	assert.Equal(t, []string{"photos/old.png"}, assets.deleted)
}

func TestUpdatePhoto_PlaceholderIsNeverDeleted(t *testing.T) {
	ctx := context.Background()
	r := newFakeRepo()
	u := r.add(entity.User{Username: "mona", PhotoURL: placeholderURL, PhotoHandle: ""})
	assets := &fakeAssets{}
	svc := newTestService(r, assets)

	_, err := svc.UpdatePhoto(ctx, u.ID, ImageUpload{Filename: "first.png"})
	require.NoError(t, err)
	assert.Empty(t, assets.deleted)
}

func TestUpdatePhoto_UploadFailureLeavesRecordAlone(t *testing.T) {
	ctx := context.Background()
	r := newFakeRepo()
	u := r.add(entity.User{Username: "ned", PhotoURL: "old-url", PhotoHandle: "photos/old.png"})
	assets := &fakeAssets{uploadErr: errors.New("bucket gone")}
	svc := newTestService(r, assets)

	_, err := svc.UpdatePhoto(ctx, u.ID, ImageUpload{Filename: "new.png"})
	assert.ErrorIs(t, err, ErrAssetStore)
	assert.Equal(t, "old-url", r.users[u.ID].PhotoURL)
	assert.Empty(t, assets.deleted)
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	r := newFakeRepo()
	u := r.add(entity.User{Username: "olga", Email: "olga@example.com", PasswordHash: "hashed:oldpw"})
	svc := newTestService(r, &fakeAssets{})

	require.NoError(t, svc.ResetPassword(ctx, "olga@example.com", "newpw"))
	assert.Equal(t, "hashed:newpw", r.users[u.ID].PasswordHash)

	err := svc.ResetPassword(ctx, "ghost@example.com", "newpw")
	assert.ErrorIs(t, err, ErrEmailNotRegistered)
}

func TestDelete_RemovesRecordAndAsset(t *testing.T) {
	ctx := context.Background()
	r := newFakeRepo()
	u := r.add(entity.User{Username: "pete", PhotoHandle: "photos/pete.png"})
	assets := &fakeAssets{}
	svc := newTestService(r, assets)

	require.NoError(t, svc.Delete(ctx, u.ID))
	assert.NotContains(t, r.users, u.ID)
	assert.Equal(t, []string{"photos/pete.png"}, assets.deleted)

	assert.ErrorIs(t, svc.Delete(ctx, "missing"), ErrNotFound)
}

func TestDelete_AssetCleanupFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	r := newFakeRepo()
	u := r.add(entity.User{Username: "quinn", PhotoHandle: "photos/quinn.png"})
	assets := &fakeAssets{deleteErr: errors.New("object locked")}
	svc := newTestService(r, assets)

	require.NoError(t, svc.Delete(ctx, u.ID))
	assert.NotContains(t, r.users, u.ID)
}

func TestFindByEmail_NilOnMiss(t *testing.T) {
	r := newFakeRepo()
	svc := newTestService(r, &fakeAssets{})

	u, err := svc.FindByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
}
