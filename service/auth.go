package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"relatim-chat/model"
	"relatim-chat/utils"

	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TokenStore keeps the single valid refresh token per user.
type TokenStore interface {
	Save(ctx context.Context, userID uint, refresh string) error
	Load(ctx context.Context, userID uint) (string, error)
}

// RoleAssigner receives the role of newly registered users.
type RoleAssigner interface {
	AddGroupingPolicy(params ...interface{}) (bool, error)
}

type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Save(ctx context.Context, userID uint, refresh string) error {
	return s.client.Set(ctx, strconv.FormatUint(uint64(userID), 10), refresh, 0).Err()
}

func (s *RedisTokenStore) Load(ctx context.Context, userID uint) (string, error) {
	token, err := s.client.Get(ctx, strconv.FormatUint(uint64(userID), 10)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	Tokens    *utils.Tokens
	TwoFactor bool
}

type OtpSecret struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

type AuthService struct {
	db        *gorm.DB
	issuer    *utils.TokenIssuer
	tokens    TokenStore
	roles     RoleAssigner
	otpIssuer string
	hashCost  int
	log       *logrus.Logger
}

func NewAuthService(db *gorm.DB, issuer *utils.TokenIssuer, tokens TokenStore, roles RoleAssigner, otpIssuer string, log *logrus.Logger) *AuthService {
	return &AuthService{
		db:        db,
		issuer:    issuer,
		tokens:    tokens,
		roles:     roles,
		otpIssuer: otpIssuer,
		hashCost:  12,
		log:       log,
	}
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, invalidArgument("Review your input")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, invalidArgument("Invalid email address")
	}

	db := s.db.WithContext(ctx)

	var taken int64
	if err := db.Model(&model.User{}).Where("email = ?", in.Email).Count(&taken).Error; err != nil {
		return nil, internal("failed to check email", err)
	}
	if taken > 0 {
		return nil, conflict("Email is already registered", 0)
	}
	if err := db.Model(&model.User{}).Where("username = ?", in.Username).Count(&taken).Error; err != nil {
		return nil, internal("failed to check username", err)
	}
	if taken > 0 {
		return nil, conflict("Username is already registered", 0)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, internal("failed to hash password", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.otpIssuer,
		AccountName: in.Email,
		SecretSize:  15,
	})
	if err != nil {
		return nil, internal("failed to generate otp secret", err)
	}

	user := &model.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  string(hash),
		Status:    model.StatusOffline,
		Role:      "user",
		OtpSecret: key.Secret(),
	}
	if err := db.Create(user).Error; err != nil {
		return nil, internal("failed to create user", err)
	}

	if s.roles != nil {
		if _, err := s.roles.AddGroupingPolicy(strconv.FormatUint(uint64(user.ID), 10), user.Role); err != nil {
			s.log.WithError(err).WithField("user_id", user.ID).Warn("Failed to assign role")
		}
	}

	s.log.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// Signin accepts an email or a username as login. Users with 2FA enabled
// get an otp-pending pair that only unlocks /2fa/validate.
func (s *AuthService) Signin(ctx context.Context, login, password string) (*AuthResult, error) {
	db := s.db.WithContext(ctx)
	user := new(model.User)

	var err error
	if _, parseErr := mail.ParseAddress(login); parseErr == nil {
		err = db.Where("email = ?", login).First(user).Error
	} else {
		err = db.Where("username = ?", login).First(user).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, unauthenticated("Invalid login or password")
	}
	if err != nil {
		return nil, internal("failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, unauthenticated("Invalid login or password")
	}

	tokens, err := s.issue(ctx, user.ID, user.OtpEnabled)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Tokens: tokens, TwoFactor: user.OtpEnabled}, nil
}

// Renew rotates the token pair. A refresh token can be used once.
func (s *AuthService) Renew(ctx context.Context, refresh string) (*AuthResult, error) {
	claims, err := s.issuer.CheckRefresh(refresh)
	if err != nil {
		return nil, unauthenticated("Invalid token")
	}

	stored, err := s.tokens.Load(ctx, claims.UserID)
	if err != nil {
		return nil, internal("failed to load refresh token", err)
	}
	if stored != refresh {
		return nil, unauthenticated("Unauthorized, your refresh token was already used")
	}

	tokens, err := s.issue(ctx, claims.UserID, claims.Otp)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Tokens: tokens, TwoFactor: claims.Otp}, nil
}

func (s *AuthService) OtpSecret(ctx context.Context, userID uint, password string) (*OtpSecret, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, invalidArgument("Invalid password")
	}

	return &OtpSecret{
		Secret: user.OtpSecret,
		URL: fmt.Sprintf("otpauth://totp/%s:%s?algorithm=SHA1&digits=6&issuer=%s&period=30&secret=%s",
			s.otpIssuer,
			user.Email,
			s.otpIssuer,
			user.OtpSecret,
		),
	}, nil
}

// OtpVerify enables 2FA after the first valid code.
func (s *AuthService) OtpVerify(ctx context.Context, userID uint, code string) error {
	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if user.OtpEnabled {
		return invalidArgument("Verification has already been performed earlier")
	}
	if !totp.Validate(code, user.OtpSecret) {
		return invalidArgument("Invalid token")
	}
	return s.setOtp(ctx, userID, true)
}

// OtpValidate trades an otp-pending session for a full one.
func (s *AuthService) OtpValidate(ctx context.Context, userID uint, code string) (*utils.Tokens, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.OtpEnabled {
		return nil, invalidArgument("2FA has been disabled")
	}
	if !totp.Validate(code, user.OtpSecret) {
		return nil, unauthenticated("Invalid token")
	}
	return s.issue(ctx, userID, false)
}

func (s *AuthService) OtpDisable(ctx context.Context, userID uint, password, code string) error {
	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if !user.OtpEnabled {
		return invalidArgument("2FA not enabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return invalidArgument("Invalid password")
	}
	if !totp.Validate(code, user.OtpSecret) {
		return invalidArgument("Invalid token")
	}
	return s.setOtp(ctx, userID, false)
}

// Authenticate validates an access token for a realtime connection. The
// token must be fully authenticated and resolve to an existing user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, unauthenticated("Authentication error")
	}
	claims, err := s.issuer.CheckAccess(token)
	if err != nil {
		return nil, unauthenticated("Authentication error")
	}
	if claims.Otp {
		return nil, unauthenticated("2FA required")
	}

	user := new(model.User)
	err = s.db.WithContext(ctx).First(user, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, unauthenticated("User not found")
	}
	if err != nil {
		return nil, internal("failed to load user", err)
	}
	return user, nil
}

func (s *AuthService) issue(ctx context.Context, userID uint, otp bool) (*utils.Tokens, error) {
	tokens, err := s.issuer.GenerateTokens(userID, otp)
	if err != nil {
		return nil, internal("failed to generate tokens", err)
	}
	if err := s.tokens.Save(ctx, userID, tokens.Refresh); err != nil {
		return nil, internal("failed to store refresh token", err)
	}
	return tokens, nil
}

func (s *AuthService) user(ctx context.Context, userID uint) (*model.User, error) {
	user := new(model.User)
	err := s.db.WithContext(ctx).First(user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("User not found")
	}
	if err != nil {
		return nil, internal("failed to load user", err)
	}
	return user, nil
}

func (s *AuthService) setOtp(ctx context.Context, userID uint, enabled bool) error {
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("otp_enabled", enabled).Error
	if err != nil {
		return internal("failed to update 2FA", err)
	}
	return nil
}
