package snowflake

import (
	"github.com/leapstack-labs/leapforge/pkg/auth"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

// Backend is the profile type handled here.
const Backend = "snowflake"

// Auth configures Snowflake connections.
type Auth struct{}

func init() {
	auth.Register(Auth{})
}

// Backend implements auth.Authenticator.
func (Auth) Backend() string { return Backend }

// Configure builds the connection descriptor. Profiles with a method field
// select one auth strategy; profiles without one use the legacy
// authenticator field.
func (Auth) Configure(cfg *auth.AdapterConfig) (*auth.Builder, error) {
	var (
		b   *auth.Builder
		err error
	)
	if method := cfg.MaybeGetStr("method"); method != nil {
		b, err = configureWithMethod(cfg, *method)
	} else {
		b, err = configureLegacy(cfg)
	}
	if err != nil {
		return nil, err
	}
	b.WithNamedOption(LogTracing, LogLevelFatal)
	return b, nil
}

func configureWithMethod(cfg *auth.AdapterConfig, method string) (*auth.Builder, error) {
	b := auth.NewBuilder()
	for _, key := range requiredParams {
		if v := cfg.MaybeGetStr(key); v != nil {
			setParam(b, key, *v)
		}
	}
	b.WithNamedOption(ApplicationName, AppName)
	if v := cfg.MaybeGetStr(S3StageVPCEDNSName); v != nil {
		b.WithNamedOption(S3StageVPCEDNSName, *v)
	}
	b.WithNamedOption(LoginTimeout, loginTimeout(cfg))

	s, err := newStrategy(cfg, method)
	if err != nil {
		return nil, err
	}
	if err := s.configure(b); err != nil {
		return nil, err
	}
	return b, nil
}

// legacyKeys are read in this order when no method is given.
var legacyKeys = []string{
	"user",
	"password",
	"account",
	"database",
	"role",
	"warehouse",
	"private_key_path",
	"private_key",
	"private_key_passphrase",
	"authenticator",
	"oauth_client_id",
	"oauth_client_secret",
	"client_session_keep_alive",
	S3StageVPCEDNSName,
}

func configureLegacy(cfg *auth.AdapterConfig) (*auth.Builder, error) {
	if cfg.MaybeGetStr("private_key_path") != nil && cfg.MaybeGetStr("private_key") != nil {
		return nil, core.ConfigurationError("Cannot specify both `private_key` and `private_key_path`.")
	}

	b := auth.NewBuilder()
	for _, key := range legacyKeys {
		v := cfg.MaybeGetStr(key)
		if v == nil {
			continue
		}
		value := *v
		switch key {
		case "user", "password", "account", "database", "role", "warehouse":
			setParam(b, key, value)
		case "private_key_path":
			contents, err := readKeyFile(value)
			if err != nil {
				return nil, err
			}
			b.WithNamedOption(AuthType, AuthJWT).WithNamedOption(JWTPrivateKeyPKCS8Value, contents)
		case "private_key":
			pem, err := NormalizeKey(value)
			if err != nil {
				return nil, err
			}
			b.WithNamedOption(AuthType, AuthJWT).WithNamedOption(JWTPrivateKeyPKCS8Value, pem)
		case "private_key_passphrase":
			b.WithNamedOption(JWTPrivateKeyPKCS8Password, value)
		case "authenticator":
			if err := configureAuthenticator(cfg, b, value); err != nil {
				return nil, err
			}
		case "oauth_client_id":
			b.WithNamedOption(ClientID, value)
		case "oauth_client_secret":
			b.WithNamedOption(ClientSecret, value)
		case "client_session_keep_alive":
			b.WithNamedOption(KeepSessionAlive, value)
		case S3StageVPCEDNSName:
			b.WithNamedOption(S3StageVPCEDNSName, value)
		}
	}

	b.WithNamedOption(LoginTimeout, loginTimeout(cfg))
	b.WithNamedOption(ApplicationName, AppName)
	return b, nil
}

func configureAuthenticator(cfg *auth.AdapterConfig, b *auth.Builder, value string) error {
	switch value {
	case "externalbrowser":
		b.WithNamedOption(ClientStoreTempCreds, "true").WithNamedOption(AuthType, AuthExternalBrowser)
	case "oauth":
		token := cfg.MaybeGetStr("token")
		if token == nil {
			return core.ConfigurationError("Field token: not found. Required for authenticator oauth.")
		}
		b.WithNamedOption(RefreshToken, *token).
			WithNamedOption(ClientStoreTempCreds, "true").
			WithNamedOption(AuthType, AuthOAuth)
	case "jwt":
		token := cfg.MaybeGetStr("token")
		if token == nil {
			return core.ConfigurationError("Field token: not found. Required for authenticator jwt.")
		}
		b.WithNamedOption(AuthToken, *token).
			WithNamedOption(ClientStoreTempCreds, "true").
			WithNamedOption(AuthType, AuthOAuth)
	case "username_password_mfa":
		b.WithNamedOption(AuthType, AuthUsernamePasswordMFA).WithNamedOption(ClientCacheMFAToken, "true")
	default:
		return core.ConfigurationError("'%s' for authenticator is not supported. If using authenticator, it must be set to exactly one of {'externalbrowser', 'oauth', 'username_password_mfa'}.", value)
	}
	return nil
}

func setParam(b *auth.Builder, key, value string) {
	switch key {
	case "user":
		b.WithUsername(value)
	case "password":
		b.WithPassword(value)
	case "account":
		b.WithNamedOption(Account, value)
	case "database":
		b.WithNamedOption(Database, value)
	case "role":
		b.WithNamedOption(Role, value)
	case "warehouse":
		b.WithNamedOption(Warehouse, value)
	}
}

// loginTimeout renders connect_timeout in seconds with a unit suffix.
func loginTimeout(cfg *auth.AdapterConfig) string {
	if v := cfg.MaybeGetStr("connect_timeout"); v != nil {
		return *v + "s"
	}
	return DefaultConnectTimeout
}
