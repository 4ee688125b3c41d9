package snowflake

import (
	"os"

	"github.com/leapstack-labs/leapforge/pkg/auth"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

// strategy appends the options of one auth method.
type strategy interface {
	configure(b *auth.Builder) error
}

// newStrategy validates the fields method needs and returns its strategy.
func newStrategy(cfg *auth.AdapterConfig, method string) (strategy, error) {
	switch method {
	case MethodKeypair, MethodSSO, MethodSnowflakeOAuth, MethodSnowflakeOAuthJWT, MethodWarehouse, MethodWarehouseMFA:
	default:
		return nil, core.ConfigurationError("Profile has unsupported authentication method %s", method)
	}
	if cfg.MaybeGetStr("authenticator") != nil {
		return nil, core.ConfigurationError("Profile does not need an authenticator. Use method field instead.")
	}

	switch method {
	case MethodKeypair:
		return newKeypair(cfg)
	case MethodSSO:
		return sso{}, nil
	case MethodSnowflakeOAuth:
		return newNativeOAuth(cfg)
	case MethodSnowflakeOAuthJWT:
		return newNativeOAuthJWT(cfg)
	case MethodWarehouse:
		return warehouse{}, nil
	default:
		return warehouseMFA{}, nil
	}
}

// keypair authenticates with a private key given inline or by path.
type keypair struct {
	key        *string
	path       *string
	passphrase *string
}

func newKeypair(cfg *auth.AdapterConfig) (*keypair, error) {
	k := &keypair{
		key:        cfg.MaybeGetStr("private_key"),
		path:       cfg.MaybeGetStr("private_key_path"),
		passphrase: cfg.MaybeGetStr("private_key_passphrase"),
	}
	switch {
	case k.key != nil && k.path != nil:
		return nil, core.ConfigurationError("Cannot specify both 'private_key' and 'private_key_path'")
	case k.key == nil && k.path == nil:
		return nil, core.ConfigurationError("Keypair authentication requires exactly one of 'private_key' or 'private_key_path'")
	}
	return k, nil
}

func (k *keypair) configure(b *auth.Builder) error {
	b.WithNamedOption(AuthType, AuthJWT)
	switch {
	case k.key != nil:
		pem, err := NormalizeKey(*k.key)
		if err != nil {
			return err
		}
		b.WithNamedOption(JWTPrivateKeyPKCS8Value, pem)
	case k.passphrase != nil:
		// The driver only decrypts keys passed by value.
		contents, err := readKeyFile(*k.path)
		if err != nil {
			return err
		}
		pem, err := NormalizeKey(contents)
		if err != nil {
			return err
		}
		b.WithNamedOption(JWTPrivateKeyPKCS8Value, pem)
	default:
		b.WithNamedOption(JWTPrivateKey, *k.path)
	}
	if k.passphrase != nil {
		b.WithNamedOption(JWTPrivateKeyPKCS8Password, *k.passphrase)
	}
	return nil
}

type nativeOAuth struct {
	clientID     string
	clientSecret string
	refreshToken string
}

func newNativeOAuth(cfg *auth.AdapterConfig) (*nativeOAuth, error) {
	if cfg.MaybeGetStr("token") != nil {
		return nil, core.ConfigurationError("Rename 'token' to 'refresh_token' in profile for 'method: snowflake_oauth'.")
	}
	id := cfg.MaybeGetStr("oauth_client_id")
	secret := cfg.MaybeGetStr("oauth_client_secret")
	refresh := cfg.MaybeGetStr("refresh_token")
	if id == nil || secret == nil || refresh == nil {
		return nil, core.ConfigurationError("Profile requires 'oauth_client_id', 'oauth_client_secret', and 'refresh_token' for method: snowflake_oauth.")
	}
	return &nativeOAuth{clientID: *id, clientSecret: *secret, refreshToken: *refresh}, nil
}

func (o *nativeOAuth) configure(b *auth.Builder) error {
	b.WithNamedOption(AuthType, AuthOAuth).
		WithNamedOption(ClientID, o.clientID).
		WithNamedOption(ClientSecret, o.clientSecret).
		WithNamedOption(RefreshToken, o.refreshToken).
		WithNamedOption(ClientStoreTempCreds, "true")
	return nil
}

type nativeOAuthJWT struct {
	token string
}

func newNativeOAuthJWT(cfg *auth.AdapterConfig) (*nativeOAuthJWT, error) {
	token := cfg.MaybeGetStr("jwt_token")
	if token == nil {
		return nil, core.ConfigurationError("Profile requires 'jwt_token' for 'method: snowflake_oauth_jwt'.")
	}
	return &nativeOAuthJWT{token: *token}, nil
}

func (o *nativeOAuthJWT) configure(b *auth.Builder) error {
	b.WithNamedOption(AuthType, AuthOAuth).
		WithNamedOption(AuthToken, o.token).
		WithNamedOption(ClientStoreTempCreds, "true")
	return nil
}

type sso struct{}

func (sso) configure(b *auth.Builder) error {
	b.WithNamedOption(AuthType, AuthExternalBrowser).
		WithNamedOption(ClientStoreTempCreds, "true")
	return nil
}

// warehouse is plain user and password, already in the required params.
type warehouse struct{}

func (warehouse) configure(*auth.Builder) error { return nil }

type warehouseMFA struct{}

func (warehouseMFA) configure(b *auth.Builder) error {
	b.WithNamedOption(AuthType, AuthUsernamePasswordMFA).
		WithNamedOption(ClientCacheMFAToken, "true")
	return nil
}

func readKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", core.ConfigurationError("could not read private_key_path %s: %v", path, err)
	}
	return string(data), nil
}
