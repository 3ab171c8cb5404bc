package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/shades-uz/api/internal/domain"
	pfirestore "github.com/shades-uz/api/internal/platform/firestore"
	"github.com/shades-uz/api/internal/repositories"
)

const userCollection = "users"

// UserRepository reads back-office and installer accounts from Firestore.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection)
	return &UserRepository{base: base}, nil
}

// FindByID loads the account by its identifier.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, errors.New("user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(doc.ID, doc.Data), nil
}

// FindByUsername resolves a login name to its account. Usernames are stored
// lowercased.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return domain.User{}, errors.New("username is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("username", "==", username).Limit(1)
	})
	if err != nil {
		return domain.User{}, err
	}
	if len(docs) == 0 {
		return domain.User{}, pfirestore.WrapError("users.findByUsername",
			status.Error(codes.NotFound, "user not found"))
	}
	return toDomainUser(docs[0].ID, docs[0].Data), nil
}

// ListInstallers returns every installer account.
func (r *UserRepository) ListInstallers(ctx context.Context) ([]domain.User, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("user repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("role", "==", string(domain.UserRoleInstaller))
	})
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, toDomainUser(doc.ID, doc.Data))
	}
	return users, nil
}

type userDocument struct {
	Username          string    `firestore:"username"`
	FullName          string    `firestore:"fullName"`
	Role              string    `firestore:"role"`
	PreferredLanguage string    `firestore:"preferredLanguage"`
	PasswordHash      string    `firestore:"passwordHash"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

func toDomainUser(id string, doc userDocument) domain.User {
	return domain.User{
		ID:                id,
		Username:          doc.Username,
		FullName:          doc.FullName,
		Role:              domain.UserRole(doc.Role),
		PreferredLanguage: domain.LanguageCode(doc.PreferredLanguage),
		PasswordHash:      doc.PasswordHash,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
}
