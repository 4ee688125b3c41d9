package snowflake

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapforge/pkg/auth"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

func baseConfig() map[string]any {
	return map[string]any{
		"user":      "U",
		"password":  "P",
		"account":   "A",
		"role":      "role",
		"warehouse": "warehouse",
	}
}

// baseExpected is what every profile built from baseConfig carries.
func baseExpected() map[string]string {
	return map[string]string{
		"user":          "U",
		"password":      "P",
		Account:         "A",
		Role:            "role",
		Warehouse:       "warehouse",
		ApplicationName: AppName,
		LogTracing:      "fatal",
		LoginTimeout:    DefaultConnectTimeout,
	}
}

func with(m map[string]string, kv ...string) map[string]string {
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

func configure(t *testing.T, raw map[string]any) (*auth.Builder, error) {
	t.Helper()
	return Auth{}.Configure(auth.NewAdapterConfig(raw))
}

func runConfigTest(t *testing.T, raw map[string]any, expected map[string]string) {
	t.Helper()
	b, err := configure(t, raw)
	require.NoError(t, err)
	assert.Equal(t, expected, b.Map())
	assert.Equal(t, len(expected), b.Len())
}

func TestConfigure_SimplePass(t *testing.T) {
	b, err := configure(t, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, 8, b.Len())
	assert.Equal(t, baseExpected(), b.Map())
}

func TestConfigure_ConnectTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout any
		want    string
	}{
		{name: "string", timeout: "100", want: "100s"},
		{name: "zero", timeout: "0", want: "0s"},
		{name: "number", timeout: 30, want: "30s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, method := range []any{nil, MethodWarehouse} {
				raw := baseConfig()
				raw["connect_timeout"] = tt.timeout
				if method != nil {
					raw["method"] = method
				}
				runConfigTest(t, raw, with(baseExpected(), LoginTimeout, tt.want))
			}
		})
	}
}

func TestConfigure_MethodWarehouse(t *testing.T) {
	raw := baseConfig()
	raw["method"] = MethodWarehouse
	runConfigTest(t, raw, baseExpected())
}

func TestConfigure_LegacyReadsDatabaseAndKeepAlive(t *testing.T) {
	raw := baseConfig()
	raw["database"] = "ANALYTICS"
	raw["client_session_keep_alive"] = true
	runConfigTest(t, raw, with(baseExpected(), Database, "ANALYTICS", KeepSessionAlive, "true"))
}

func TestConfigure_KeypairValue(t *testing.T) {
	key := PEMUnencryptedStart + "\nprivate_key\n" + PEMUnencryptedEnd
	want := with(baseExpected(), AuthType, AuthJWT, JWTPrivateKeyPKCS8Value, key)

	t.Run("method", func(t *testing.T) {
		raw := baseConfig()
		raw["method"] = MethodKeypair
		raw["private_key"] = key
		runConfigTest(t, raw, want)
	})
	t.Run("legacy", func(t *testing.T) {
		raw := baseConfig()
		raw["private_key"] = key
		runConfigTest(t, raw, want)
	})
}

func TestConfigure_KeypairPath(t *testing.T) {
	raw := baseConfig()
	raw["method"] = MethodKeypair
	raw["private_key_path"] = "private_key_path"
	runConfigTest(t, raw, with(baseExpected(), AuthType, AuthJWT, JWTPrivateKey, "private_key_path"))
}

func TestConfigure_KeypairPathWithPassphrase(t *testing.T) {
	key := PEMEncryptedStart + "\nprivate_key\n" + PEMEncryptedEnd
	path := filepath.Join(t.TempDir(), "rsa_key.p8")
	require.NoError(t, os.WriteFile(path, []byte(key), 0o600))

	raw := baseConfig()
	raw["method"] = MethodKeypair
	raw["private_key_path"] = path
	raw["private_key_passphrase"] = "secret"
	runConfigTest(t, raw, with(baseExpected(),
		AuthType, AuthJWT,
		JWTPrivateKeyPKCS8Value, key,
		JWTPrivateKeyPKCS8Password, "secret",
	))
}

func TestConfigure_LegacyKeyPathReadsFile(t *testing.T) {
	key := PEMUnencryptedStart + "\nabc\n" + PEMUnencryptedEnd + "\n"
	path := filepath.Join(t.TempDir(), "rsa_key.p8")
	require.NoError(t, os.WriteFile(path, []byte(key), 0o600))

	raw := baseConfig()
	raw["private_key_path"] = path
	runConfigTest(t, raw, with(baseExpected(), AuthType, AuthJWT, JWTPrivateKeyPKCS8Value, key))

	raw["private_key_path"] = filepath.Join(t.TempDir(), "missing.p8")
	_, err := configure(t, raw)
	assert.True(t, core.IsKind(err, core.KindConfiguration))
}

func TestConfigure_EncryptedKeypair(t *testing.T) {
	wantPEM := wrapPEM64(PEMEncryptedStart, encryptedPKCS8DERBase64, PEMEncryptedEnd)
	want := with(baseExpected(),
		AuthType, AuthJWT,
		JWTPrivateKeyPKCS8Value, wantPEM,
		JWTPrivateKeyPKCS8Password, "private_key_passphrase",
	)
	for _, method := range []any{nil, MethodKeypair} {
		raw := baseConfig()
		if method != nil {
			raw["method"] = method
		}
		raw["private_key"] = encryptedPKCS8DERBase64
		raw["private_key_passphrase"] = "private_key_passphrase"
		runConfigTest(t, raw, want)
	}
}

func TestConfigure_KeypairExclusivity(t *testing.T) {
	for _, method := range []any{nil, MethodKeypair} {
		raw := baseConfig()
		if method != nil {
			raw["method"] = method
		}
		raw["private_key"] = PEMUnencryptedStart + "\nx\n" + PEMUnencryptedEnd
		raw["private_key_path"] = "/does/not/exist"
		_, err := configure(t, raw)
		require.Error(t, err)
		assert.True(t, core.IsKind(err, core.KindConfiguration))
		assert.Contains(t, err.Error(), "private_key")
		assert.Contains(t, err.Error(), "private_key_path")
	}

	raw := baseConfig()
	raw["method"] = MethodKeypair
	_, err := configure(t, raw)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConfiguration))
	assert.Contains(t, err.Error(), "exactly one of 'private_key' or 'private_key_path'")
}

func TestConfigure_ExternalBrowser(t *testing.T) {
	want := with(baseExpected(), AuthType, AuthExternalBrowser, ClientStoreTempCreds, "true")

	legacy := baseConfig()
	legacy["authenticator"] = "externalbrowser"
	runConfigTest(t, legacy, want)

	method := baseConfig()
	method["method"] = MethodSSO
	runConfigTest(t, method, want)
}

func TestConfigure_NativeOAuth(t *testing.T) {
	want := with(baseExpected(),
		AuthType, AuthOAuth,
		ClientID, "C",
		ClientSecret, "S",
		RefreshToken, "R",
		ClientStoreTempCreds, "true",
	)

	legacy := baseConfig()
	legacy["authenticator"] = "oauth"
	legacy["oauth_client_id"] = "C"
	legacy["oauth_client_secret"] = "S"
	legacy["token"] = "R"
	runConfigTest(t, legacy, want)

	method := baseConfig()
	method["method"] = MethodSnowflakeOAuth
	method["oauth_client_id"] = "C"
	method["oauth_client_secret"] = "S"
	method["refresh_token"] = "R"
	runConfigTest(t, method, want)
}

func TestConfigure_JWT(t *testing.T) {
	const token = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9"
	want := with(baseExpected(), AuthType, AuthOAuth, AuthToken, token, ClientStoreTempCreds, "true")

	legacy := baseConfig()
	legacy["authenticator"] = "jwt"
	legacy["token"] = token
	runConfigTest(t, legacy, want)

	method := baseConfig()
	method["method"] = MethodSnowflakeOAuthJWT
	method["jwt_token"] = token
	runConfigTest(t, method, want)
}

func TestConfigure_UsernamePasswordMFA(t *testing.T) {
	want := with(baseExpected(), AuthType, AuthUsernamePasswordMFA, ClientCacheMFAToken, "true")

	legacy := baseConfig()
	legacy["authenticator"] = "username_password_mfa"
	runConfigTest(t, legacy, want)

	method := baseConfig()
	method["method"] = MethodWarehouseMFA
	runConfigTest(t, method, want)
}

func TestConfigure_S3StageVPCEDNSName(t *testing.T) {
	const dns = "my-vpce-endpoint.s3.region.vpce.amazonaws.com"
	want := with(baseExpected(), S3StageVPCEDNSName, dns)
	for _, method := range []any{nil, MethodWarehouse} {
		raw := baseConfig()
		if method != nil {
			raw["method"] = method
		}
		raw[S3StageVPCEDNSName] = dns
		runConfigTest(t, raw, want)
	}
}

func TestConfigure_Errors(t *testing.T) {
	tests := []struct {
		name     string
		extra    map[string]any
		contains []string
	}{
		{
			name:     "authenticator with method",
			extra:    map[string]any{"method": MethodWarehouseMFA, "authenticator": "wrong"},
			contains: []string{"authenticator", "Use method field"},
		},
		{
			name:     "oauth token instead of refresh_token",
			extra:    map[string]any{"method": MethodSnowflakeOAuth, "oauth_client_id": "id", "oauth_client_secret": "s", "token": "t"},
			contains: []string{"Rename", "refresh_token"},
		},
		{
			name:     "oauth missing secret",
			extra:    map[string]any{"method": MethodSnowflakeOAuth, "oauth_client_id": "id", "refresh_token": "r"},
			contains: []string{"oauth_client_id", "oauth_client_secret", "refresh_token"},
		},
		{
			name:     "jwt with token",
			extra:    map[string]any{"method": MethodSnowflakeOAuthJWT, "token": "wrong_field"},
			contains: []string{"Profile", "'jwt_token'"},
		},
		{
			name:     "jwt missing",
			extra:    map[string]any{"method": MethodSnowflakeOAuthJWT},
			contains: []string{"jwt_token", "snowflake_oauth_jwt"},
		},
		{
			name:     "unknown method",
			extra:    map[string]any{"method": "ldap"},
			contains: []string{"unsupported authentication method ldap"},
		},
		{
			name:     "unknown authenticator",
			extra:    map[string]any{"authenticator": "okta"},
			contains: []string{"'okta' for authenticator is not supported"},
		},
		{
			name:     "legacy oauth without token",
			extra:    map[string]any{"authenticator": "oauth"},
			contains: []string{"Required for authenticator oauth"},
		},
		{
			name:     "legacy jwt without token",
			extra:    map[string]any{"authenticator": "jwt"},
			contains: []string{"Required for authenticator jwt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := baseConfig()
			for k, v := range tt.extra {
				raw[k] = v
			}
			_, err := configure(t, raw)
			require.Error(t, err)
			assert.True(t, core.IsKind(err, core.KindConfiguration), "got %v", err)
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestConfigure_MissingRequiredParamsDeferred(t *testing.T) {
	b, err := configure(t, map[string]any{"account": "A"})
	require.NoError(t, err)
	_, ok := b.Username()
	assert.False(t, ok)
	assert.Equal(t, map[string]string{
		Account:         "A",
		ApplicationName: AppName,
		LogTracing:      "fatal",
		LoginTimeout:    DefaultConnectTimeout,
	}, b.Map())
}

func TestRegistered(t *testing.T) {
	a, err := auth.Lookup(Backend)
	require.NoError(t, err)
	assert.Equal(t, Backend, a.Backend())
}

func TestIsSecret(t *testing.T) {
	assert.True(t, IsSecret("password"))
	assert.True(t, IsSecret(ClientSecret))
	assert.False(t, IsSecret(Account))
}
