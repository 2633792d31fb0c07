package account

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/nao1215/feliz/pkg/api"
	"github.com/nao1215/feliz/pkg/i18n"
	"github.com/nao1215/feliz/pkg/middleware"
	"github.com/nao1215/feliz/pkg/response"
	"github.com/nao1215/feliz/pkg/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// errWrongCredentials はuidかパスワードが一致しない場合の失敗。
const errWrongCredentials = "Wrong uid or password."

// Service は users と auth のルートハンドラを持つ。
type Service struct {
	cost int
	now  func() time.Time
}

// Option は Service の設定を変更する。
type Option func(*Service)

// WithCost はbcryptのコストを設定する。
func WithCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// WithClock は現在時刻を返す関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService は Service を生成する。
func NewService(opts ...Option) *Service {
	s := &Service{cost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register はレジストリに users_api.usersApi と auth_api.authApi を登録する。
func Register(r *api.Registry, s *Service) error {
	return errors.Join(
		r.Provide("users_api", "usersApi", s.UsersGroup),
		r.Provide("auth_api", "authApi", s.AuthGroup),
	)
}

func init() {
	s := NewService()
	api.Provide("users_api", "usersApi", s.UsersGroup)
	api.Provide("auth_api", "authApi", s.AuthGroup)
}

// UsersGroup は /api/users 配下のグループを返す。
func (s *Service) UsersGroup() *api.Group {
	return api.NewGroup("users").
		POST("/create", s.create).
		GET("/me", s.me).
		GET("/list", s.list).
		PATCH("/status", s.updateStatus).
		PATCH("/permission", s.updatePermission)
}

// AuthGroup は /api/auth 配下のグループを返す。
func (s *Service) AuthGroup() *api.Group {
	return api.NewGroup("auth").
		POST("/login", s.login).
		POST("/logout", s.logout)
}

func (s *Service) create(p api.Params) (any, error) {
	uid := stringInput(p.InputRequest, "uid")
	err := s.CreateUser(p.Context.Request().Context(), p.Context.Store(), uid,
		stringInput(p.InputRequest, "password"), DefaultPermission, stringInput(p.InputRequest, "name"))
	if err != nil {
		return nil, err
	}
	return response.True("Success", map[string]any{"uid": uid, "permission": DefaultPermission}), nil
}

// CreateUser はパスワードをハッシュ化して利用者を追加する。
// 既に存在するuidや未知の権限は IndicatorFalseError になる。
func (s *Service) CreateUser(ctx context.Context, st *store.Store, uid, password, permission, name string) error {
	if !slices.Contains(permissions, permission) {
		return response.Failf("Unknown permission: %s", permission)
	}
	repo, err := NewRepository(st)
	if err != nil {
		return err
	}
	if _, found, err := repo.Find(ctx, uid); err != nil {
		return err
	} else if found {
		return response.Failf("This account (%s) already exists.", uid)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return response.Fail(err.Error())
	}
	return repo.Create(ctx, uid, string(hash), permission, name)
}

func (s *Service) me(p api.Params) (any, error) {
	return response.True("Success", p.UserData), nil
}

func (s *Service) list(p api.Params) (any, error) {
	repo, err := NewRepository(p.Context.Store())
	if err != nil {
		return nil, err
	}
	users, err := repo.List(p.Context.Request().Context())
	if err != nil {
		return nil, err
	}
	return response.True("Success", users), nil
}

func (s *Service) updateStatus(p api.Params) (any, error) {
	uid := stringInput(p.InputRequest, "uid")
	status := stringInput(p.InputRequest, "status")
	if !slices.Contains([]string{StatusActive, StatusBlocked}, status) {
		return nil, response.Failf("Unknown status: %s", status)
	}

	repo, err := NewRepository(p.Context.Store())
	if err != nil {
		return nil, err
	}
	ok, err := repo.UpdateStatus(p.Context.Request().Context(), uid, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, response.Failf("This account (%s) is not in database.", uid)
	}
	return response.True("Success", map[string]any{"uid": uid, "status": status}), nil
}

func (s *Service) updatePermission(p api.Params) (any, error) {
	uid := stringInput(p.InputRequest, "uid")
	permission := stringInput(p.InputRequest, "permission")
	if !slices.Contains(permissions, permission) {
		return nil, response.Failf("Unknown permission: %s", permission)
	}

	repo, err := NewRepository(p.Context.Store())
	if err != nil {
		return nil, err
	}
	ok, err := repo.UpdatePermission(p.Context.Request().Context(), uid, permission)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, response.Failf("This account (%s) is not in database.", uid)
	}
	return response.True("Success", map[string]any{"uid": uid, "permission": permission}), nil
}

func (s *Service) login(p api.Params) (any, error) {
	c := p.Context
	if c.App.JWT == nil {
		return nil, response.NewDevelopmentError("ログインにはJWTの初期化が必要です")
	}
	ctx := c.Request().Context()
	repo, err := NewRepository(c.Store())
	if err != nil {
		return nil, err
	}

	uid := stringInput(p.InputRequest, "uid")
	user, found, err := repo.Find(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, response.Fail(errWrongCredentials)
	}
	hash, _ := user["password"].(string)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(stringInput(p.InputRequest, "password"))); err != nil {
		return nil, response.Fail(errWrongCredentials)
	}
	if status, _ := user["status"].(string); status != StatusActive {
		return nil, response.Fail(middleware.StatusMessage(status))
	}

	permission, _ := user["permission"].(string)
	token, err := c.App.JWT.CreateAccessToken(uid, map[string]any{
		Lookup.UniqueKey: uid,
		"permission":     permission,
	})
	if err != nil {
		return nil, err
	}
	if err := repo.RecordLogin(ctx, uid, s.now()); err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("ログイン履歴の記録に失敗")
	}

	msg, ok := i18n.Lookup(c.Store(), "login_success", c.Request().Header.Get("Accept-Language"))
	if !ok {
		msg = "Login success"
	}
	content := map[string]any{"access_token": token, "expires": false}
	if d, ok := c.App.JWT.Expiry(); ok {
		content["expires"] = d.String()
	}
	return response.True(msg, content), nil
}

func (s *Service) logout(p api.Params) (any, error) {
	c := p.Context
	if c.App.JWT == nil {
		return nil, response.NewDevelopmentError("ログアウトにはJWTの初期化が必要です")
	}
	if err := c.App.JWT.Revoke(c.Request().Context(), c.Claims); err != nil {
		return nil, err
	}
	return response.True("Logout success", nil), nil
}

// stringInput は入力の文字列値を返す。文字列でない場合は空文字列。
func stringInput(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}
