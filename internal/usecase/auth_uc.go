package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mentalspace/internal/domain"
	"mentalspace/internal/domain/model"
	"mentalspace/internal/domain/ports/adapter"
	"mentalspace/internal/domain/ports/repository"
	"mentalspace/internal/infra/logging"
)

var _ AuthUseCase = (*authUC)(nil)

type AuthUseCase interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	// Authenticate resolves a bearer token to an active account.
	Authenticate(ctx context.Context, token string) (model.Principal, error)
}

type LoginInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	AccountKind string `json:"accountKind" validate:"omitempty,oneof=user counselor"`
}

// AccountView is what login returns about the caller.
type AccountView struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	FirstName string            `json:"firstName"`
	LastName  string            `json:"lastName"`
	Type      model.AccountKind `json:"type"`
}

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Account   AccountView `json:"account"`
}

type authUC struct {
	users      repository.UserRepository
	counselors repository.CounselorRepository
	tokens     adapter.TokenIssuer
	hasher     adapter.PasswordHasher
	log        *zerolog.Logger
	dev        bool
}

func NewAuthUseCase(users repository.UserRepository, counselors repository.CounselorRepository, tokens adapter.TokenIssuer, hasher adapter.PasswordHasher, logger *zerolog.Logger, dev bool) *authUC {
	return &authUC{users: users, counselors: counselors, tokens: tokens, hasher: hasher, log: logger, dev: dev}
}

type credential struct {
	view         AccountView
	passwordHash string
	active       bool
}

func (a *authUC) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	defer logging.TraceDuration(a.log, "AuthUC.Login")()

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return nil, err
	}

	cred, err := a.lookup(ctx, in.Email, model.AccountKind(in.AccountKind))
	if err != nil {
		if isNotFound(err) {
			a.log.Info().Str("email", logging.Redact(in.Email, a.dev)).Msg("login for unknown account")
			return nil, domain.ErrInvalidLogin
		}
		return nil, err
	}
	if err := a.hasher.Compare(cred.passwordHash, in.Password); err != nil {
		return nil, domain.ErrInvalidLogin
	}
	if !cred.active {
		return nil, domain.ErrAccountInactive
	}

	token, exp, err := a.tokens.Mint(cred.view.ID, cred.view.Type)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, Account: cred.view}, nil
}

// lookup searches users first unless kind pins the table.
func (a *authUC) lookup(ctx context.Context, email string, kind model.AccountKind) (*credential, error) {
	if kind != model.AccountCounselor {
		u, err := a.users.FindByEmail(ctx, repository.NoTX, email)
		if err == nil {
			return &credential{
				view:         AccountView{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Type: model.AccountUser},
				passwordHash: u.PasswordHash,
				active:       u.IsActive,
			}, nil
		}
		if !isNotFound(err) || kind == model.AccountUser {
			return nil, err
		}
	}
	c, err := a.counselors.FindByEmail(ctx, repository.NoTX, email)
	if err != nil {
		return nil, err
	}
	return &credential{
		view:         AccountView{ID: c.ID, Email: c.Email, FirstName: c.FirstName, LastName: c.LastName, Type: model.AccountCounselor},
		passwordHash: c.PasswordHash,
		active:       c.IsActive,
	}, nil
}

func (a *authUC) Authenticate(ctx context.Context, token string) (model.Principal, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return model.Principal{}, domain.ErrInvalidToken
	}

	var p model.Principal
	switch claims.Kind {
	case model.AccountCounselor:
		c, err := a.counselors.FindByID(ctx, repository.NoTX, claims.Subject)
		if err != nil {
			if isNotFound(err) {
				return model.Principal{}, domain.ErrInvalidToken
			}
			return model.Principal{}, err
		}
		p = c.Principal()
	default:
		u, err := a.users.FindByID(ctx, repository.NoTX, claims.Subject)
		if err != nil {
			if isNotFound(err) {
				return model.Principal{}, domain.ErrInvalidToken
			}
			return model.Principal{}, err
		}
		p = u.Principal()
	}
	if !p.IsActive {
		return model.Principal{}, domain.ErrAccountInactive
	}
	return p, nil
}
