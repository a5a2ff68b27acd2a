package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	sharedauth "jobtracker-backend/internal/shared/auth"
	"jobtracker-backend/internal/shared/telemetry"
)

const (
	minNameLen     = 2
	minPasswordLen = 6
)

// Session is the result of a successful sign-in.
type Session struct {
	Token string
	User  User
}

// RegisterInput carries the fields of a password sign-up.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// GoogleIdentity is the profile returned by Google's userinfo endpoint.
type GoogleIdentity struct {
	Sub     string
	Email   string
	Name    string
	Picture string
}

// ProfileUpdate carries the editable account fields. Nil leaves a field unchanged.
type ProfileUpdate struct {
	Name    *string
	Email   *string
	Profile *Profile
}

type Service struct {
	Repo       Repo
	BcryptCost int
	Now        func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo, BcryptCost: bcrypt.DefaultCost}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) cost() int {
	if s.BcryptCost < bcrypt.MinCost {
		return bcrypt.DefaultCost
	}
	return s.BcryptCost
}

// Register creates a password account and signs a token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	name := strings.TrimSpace(in.Name)
	if len([]rune(name)) < minNameLen {
		return Session{}, invalid("name", "Name must be at least 2 characters")
	}
	email, err := validEmail(in.Email)
	if err != nil {
		return Session{}, err
	}
	if len(in.Password) < minPasswordLen {
		return Session{}, invalid("password", "Password must be at least 6 characters")
	}

	if _, err := s.Repo.GetByEmail(ctx, email); err == nil {
		return Session{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost())
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return Session{}, err
	}
	telemetry.Info("user.registered", map[string]any{"user_id": user.ID})
	return s.session(user)
}

// Login checks the password and signs a token. Unknown emails and wrong
// passwords both report ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	addr, err := validEmail(email)
	if err != nil {
		return Session{}, err
	}
	if password == "" {
		return Session{}, invalid("password", "Password is required")
	}
	user, err := s.Repo.GetByEmail(ctx, addr)
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !user.HasPassword() || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		telemetry.Warn("user.login_failed", map[string]any{"user_id": user.ID})
		return Session{}, ErrInvalidCredentials
	}
	return s.session(user)
}

// GetByID returns the account for an authenticated caller.
func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID)
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" {
		return invalid("currentPassword", "Current password is required")
	}
	if len(next) < minPasswordLen {
		return invalid("newPassword", "New password must be at least 6 characters")
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost())
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = s.now()
	return s.Repo.Update(ctx, user)
}

// UpdateProfile edits the account's name, email and contact details.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len([]rune(name)) < minNameLen {
			return User{}, invalid("name", "Name must be at least 2 characters")
		}
		user.Name = name
	}
	if in.Email != nil {
		email, err := validEmail(*in.Email)
		if err != nil {
			return User{}, err
		}
		user.Email = email
	}
	if in.Profile != nil {
		user.Profile = normalizeProfile(*in.Profile)
	}
	user.UpdatedAt = s.now()
	if err := s.Repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpsertFromGoogle links a Google identity to the account with the same
// email, creating one when none exists, and signs a token for it.
func (s *Service) UpsertFromGoogle(ctx context.Context, id GoogleIdentity) (Session, error) {
	if strings.TrimSpace(id.Sub) == "" {
		return Session{}, invalid("sub", "Google subject is required")
	}
	email, err := validEmail(id.Email)
	if err != nil {
		return Session{}, err
	}
	now := s.now()
	user, err := s.Repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		user = User{
			ID:         uuid.NewString(),
			Email:      email,
			Name:       strings.TrimSpace(id.Name),
			PictureURL: id.Picture,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if user.Name == "" {
			user.Name = email
		}
		if err := s.Repo.Create(ctx, user); err != nil {
			return Session{}, err
		}
		telemetry.Info("user.registered", map[string]any{"user_id": user.ID, "provider": "google"})
	case err != nil:
		return Session{}, err
	default:
		if id.Picture != "" {
			user.PictureURL = id.Picture
		}
		if user.Name == "" && strings.TrimSpace(id.Name) != "" {
			user.Name = strings.TrimSpace(id.Name)
		}
		user.UpdatedAt = now
		if err := s.Repo.Update(ctx, user); err != nil {
			return Session{}, err
		}
	}
	return s.session(user)
}

func (s *Service) session(user User) (Session, error) {
	token, err := sharedauth.SignJWT(sharedauth.Claims{
		Sub:     user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.PictureURL,
	})
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, User: user}, nil
}

func validEmail(raw string) (string, error) {
	email := NormalizeEmail(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", "Please provide a valid email")
	}
	return email, nil
}

func normalizeProfile(p Profile) Profile {
	p.Phone = strings.TrimSpace(p.Phone)
	p.Location = strings.TrimSpace(p.Location)
	p.LinkedIn = strings.TrimSpace(p.LinkedIn)
	p.GitHub = strings.TrimSpace(p.GitHub)
	p.Portfolio = strings.TrimSpace(p.Portfolio)
	p.Experience = strings.TrimSpace(p.Experience)
	p.Education = strings.TrimSpace(p.Education)
	skills := make([]string, 0, len(p.Skills))
	for _, s := range p.Skills {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			skills = append(skills, trimmed)
		}
	}
	p.Skills = skills
	return p
}
