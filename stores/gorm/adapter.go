package gorm

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	nextauth "github.com/nextauthjs/next-auth-sub011"
)

// Adapter implements nextauth.Adapter on a *gorm.DB.
type Adapter struct {
	db *gorm.DB
}

// New wraps an open GORM handle. Call AutoMigrate separately.
func New(db *gorm.DB) *Adapter {
	return &Adapter{db: db}
}

var _ nextauth.Adapter = (*Adapter)(nil)

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*nextauth.User, error) {
	var model UserModel
	err := a.db.WithContext(ctx).First(&model, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.toUser(), nil
}

func (a *Adapter) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*nextauth.User, error) {
	var account AccountModel
	err := a.db.WithContext(ctx).
		First(&account, "provider = ? AND provider_account_id = ?", provider, providerAccountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user UserModel
	err = a.db.WithContext(ctx).First(&user, "id = ?", account.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user.toUser(), nil
}

func (a *Adapter) CreateUser(ctx context.Context, user *nextauth.User) (*nextauth.User, error) {
	model := UserModel{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Image:         user.Image,
	}
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if err := a.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, err
	}
	return model.toUser(), nil
}

func (a *Adapter) LinkAccount(ctx context.Context, account *nextauth.Account) error {
	model := AccountModel{
		Provider:          account.Provider,
		ProviderAccountID: account.ProviderAccountID,
		UserID:            account.UserID,
		Type:              account.Type,
	}
	// Conflict on the composite key means the linkage already exists.
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
}

func (a *Adapter) CreateVerificationToken(ctx context.Context, token *nextauth.VerificationToken) error {
	model := VerificationTokenModel{
		Identifier: token.Identifier,
		Token:      token.Token,
		Expires:    token.Expires,
	}
	return a.db.WithContext(ctx).Create(&model).Error
}

func (a *Adapter) UseVerificationToken(ctx context.Context, identifier, tokenHash string) (*nextauth.VerificationToken, error) {
	var model VerificationTokenModel
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, "identifier = ? AND token = ?", identifier, tokenHash).Error; err != nil {
			return err
		}
		res := tx.Delete(&VerificationTokenModel{}, "identifier = ? AND token = ?", identifier, tokenHash)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race; someone else consumed it.
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &nextauth.VerificationToken{
		Identifier: model.Identifier,
		Token:      model.Token,
		Expires:    model.Expires,
	}, nil
}

func (a *Adapter) CreateSession(ctx context.Context, session *nextauth.Session) error {
	model := SessionModel{
		SessionToken: session.SessionToken,
		UserID:       session.UserID,
		Expires:      session.Expires,
	}
	return a.db.WithContext(ctx).Create(&model).Error
}

func (a *Adapter) UpdateSession(ctx context.Context, session *nextauth.Session) (*nextauth.Session, error) {
	res := a.db.WithContext(ctx).Model(&SessionModel{}).
		Where("session_token = ?", session.SessionToken).
		Update("expires", session.Expires)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return session, nil
}

func (a *Adapter) DeleteSession(ctx context.Context, sessionToken string) error {
	return a.db.WithContext(ctx).
		Delete(&SessionModel{}, "session_token = ?", sessionToken).Error
}

func (a *Adapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*nextauth.Session, *nextauth.User, error) {
	var session SessionModel
	err := a.db.WithContext(ctx).First(&session, "session_token = ?", sessionToken).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var user UserModel
	err = a.db.WithContext(ctx).First(&user, "id = ?", session.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return session.toSession(), user.toUser(), nil
}
