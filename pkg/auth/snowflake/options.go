// Package snowflake builds Snowflake connection descriptors from profile
// configuration. Profiles either name an explicit auth method or use the
// legacy authenticator field.
package snowflake

// Option names understood by the Snowflake driver.
const (
	Account                    = "account"
	Database                   = "database"
	Role                       = "role"
	Warehouse                  = "warehouse"
	AuthType                   = "auth_type"
	LoginTimeout               = "login_timeout"
	ApplicationName            = "application_name"
	LogTracing                 = "log_tracing"
	JWTPrivateKey              = "jwt_private_key"
	JWTPrivateKeyPKCS8Value    = "jwt_private_key_pkcs8_value"
	JWTPrivateKeyPKCS8Password = "jwt_private_key_pkcs8_password"
	ClientID                   = "client_id"
	ClientSecret               = "client_secret"
	RefreshToken               = "refresh_token"
	AuthToken                  = "auth_token"
	ClientStoreTempCreds       = "client_store_temp_creds"
	ClientCacheMFAToken        = "client_cache_mfa_token"
	KeepSessionAlive           = "keep_session_alive"
	S3StageVPCEDNSName         = "s3_stage_vpce_dns_name"
)

// Values of the auth_type option.
const (
	AuthSnowflake           = "auth_snowflake"
	AuthOAuth               = "auth_oauth"
	AuthExternalBrowser     = "auth_external_browser"
	AuthOkta                = "auth_okta"
	AuthJWT                 = "auth_jwt"
	AuthUsernamePasswordMFA = "auth_username_password_mfa"
)

const (
	// AppName tags every session opened by leapforge.
	AppName = "dbt"
	// DefaultConnectTimeout is used when the profile sets no connect_timeout.
	DefaultConnectTimeout = "10s"
	// LogLevelFatal silences driver logging below fatal.
	LogLevelFatal = "fatal"
)

// Auth methods selectable with the method field.
const (
	MethodKeypair           = "keypair"
	MethodSSO               = "sso"
	MethodSnowflakeOAuth    = "snowflake_oauth"
	MethodSnowflakeOAuthJWT = "snowflake_oauth_jwt"
	MethodWarehouse         = "warehouse"
	MethodWarehouseMFA      = "warehouse_mfa"
)

// requiredParams are copied into the descriptor when present. Missing ones
// surface when the driver connects.
var requiredParams = []string{"user", "password", "account", "role", "warehouse"}

// secretOptions hold credentials and are redacted when a descriptor is
// displayed.
var secretOptions = map[string]bool{
	JWTPrivateKeyPKCS8Value:    true,
	JWTPrivateKeyPKCS8Password: true,
	ClientSecret:               true,
	RefreshToken:               true,
	AuthToken:                  true,
}

// IsSecret reports whether a descriptor entry holds a credential.
func IsSecret(name string) bool {
	return name == "password" || secretOptions[name]
}
